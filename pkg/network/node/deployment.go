package node

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/pkg/network/protocol"
)

// DeploymentID names a raffle configuration on the wire. Clients and servers
// with different configurations fail the ALPN negotiation.
func DeploymentID(cfg raffle.Config) string {
	buf := make([]byte, 0, 8+8+crypto.HashSize+8+2+4+4)
	buf = binary.BigEndian.AppendUint64(buf, cfg.EntranceFee)
	buf = binary.BigEndian.AppendUint64(buf, uint64(cfg.Interval))
	buf = append(buf, cfg.KeyHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, cfg.SubscriptionID)
	buf = binary.BigEndian.AppendUint16(buf, cfg.RequestConfirmations)
	buf = binary.BigEndian.AppendUint32(buf, cfg.CallbackGasLimit)
	buf = binary.BigEndian.AppendUint32(buf, cfg.NumWords)
	h := crypto.HashData(buf)
	return hex.EncodeToString(h[:4])
}

func protocolsFor(deploymentID string) []string {
	return []string{protocol.NewProtocolID(deploymentID).String()}
}
