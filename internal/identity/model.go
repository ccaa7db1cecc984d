package identity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Credential binds an API token hash to a principal.
type Credential struct {
	Principal  common.Address
	SecretHash []byte
	CreatedAt  time.Time
}
