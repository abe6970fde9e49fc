package protocol

import (
	"fmt"
	"strings"
)

const (
	// Protocol prefix for the raffle wire protocol
	protocolPrefix = "raffle"

	// Current protocol version
	currentVersion = "0"

	// Deployment id length in nibbles
	deploymentIDLength = 8
)

// ProtocolID represents a complete ALPN protocol identifier.
// Format: raffle/<version>/<deployment-id>
type ProtocolID struct {
	// Version is the protocol version (currently only "0")
	Version string
	// DeploymentID is the 8-nibble identifier of the raffle configuration
	DeploymentID string
}

// NewProtocolID creates a ProtocolID for the current version.
func NewProtocolID(deploymentID string) *ProtocolID {
	return &ProtocolID{
		Version:      currentVersion,
		DeploymentID: deploymentID,
	}
}

// String converts the ProtocolID to its string representation,
// e.g. "raffle/0/deadbeef".
func (p *ProtocolID) String() string {
	return strings.Join([]string{protocolPrefix, p.Version, p.DeploymentID}, "/")
}

// ParseProtocolID parses an ALPN protocol string into a ProtocolID.
// Validates:
//   - Correct format and number of parts
//   - Valid prefix
//   - Supported version
//   - Deployment id format (8 hex nibbles)
func ParseProtocolID(protocol string) (*ProtocolID, error) {
	parts := strings.Split(protocol, "/")

	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid protocol format: %s", protocol)
	}
	if parts[0] != protocolPrefix {
		return nil, fmt.Errorf("invalid protocol prefix: %s", parts[0])
	}
	if parts[1] != currentVersion {
		return nil, fmt.Errorf("unsupported protocol version: %s", parts[1])
	}

	deploymentID := parts[2]
	if len(deploymentID) != deploymentIDLength {
		return nil, fmt.Errorf("invalid deployment id length: %s", deploymentID)
	}
	for _, c := range deploymentID {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("invalid deployment id character: %c", c)
		}
	}

	return &ProtocolID{
		Version:      parts[1],
		DeploymentID: deploymentID,
	}, nil
}

// ValidateALPNProtocol validates an ALPN protocol string.
func ValidateALPNProtocol(protocol string) error {
	_, err := ParseProtocolID(protocol)
	return err
}
