package custody

import (
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID        `bun:"id,pk,type:uuid" json:"id"`
	Username      string           `bun:"username,notnull,unique" json:"username"`
	Email         string           `bun:"email,unique,nullzero" json:"email,omitempty"`
	PasswordHash  string           `bun:"password_hash,notnull" json:"-"`
	IsActive      bool             `bun:"is_active,notnull,default:true" json:"is_active"`
	IsVerified    bool             `bun:"is_verified,notnull,default:false" json:"is_verified"`
	IsAdmin       bool             `bun:"is_admin,notnull,default:false" json:"is_admin"`
	Chains        ChainPreferences `bun:"chains,type:text" json:"mainnet_dict"`
	CreatedAt     *time.Time       `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time       `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Wallet is a custodial EVM account owned by a user
type Wallet struct {
	bun.BaseModel `bun:"table:wallets,alias:wlt"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"-"`
	Address       string     `bun:"address,notnull,unique" json:"address"`
	PrivateKey    string     `bun:"private_key,notnull,unique" json:"-"`
	Mnemonic      string     `bun:"mnemonics,notnull,unique" json:"-"`
	IsSecure      bool       `bun:"is_secure,notnull,default:true" json:"is_secure"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// WalletCredentials is the view returned when secrets are revealed
type WalletCredentials struct {
	Address    string `json:"address"`
	IsSecure   bool   `json:"is_secure"`
	PrivateKey string `json:"private_key"`
	Mnemonic   string `json:"mnemonics"`
}

// Credentials returns the secret view of the wallet
func (w *Wallet) Credentials() WalletCredentials {
	return WalletCredentials{
		Address:    w.Address,
		IsSecure:   w.IsSecure,
		PrivateKey: w.PrivateKey,
		Mnemonic:   w.Mnemonic,
	}
}

// walletID derives a stable id from the address so the same account always
// maps to the same row id
func walletID(address string) uuid.UUID {
	if id, err := hashid.NewUUID(strings.ToLower(address)); err == nil {
		return id
	}
	return uuid.New()
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Chains == nil {
		record.Chains = ChainPreferences{}
	}

	record.Email = strings.TrimSpace(record.Email)
}

func prepareWalletDefaults(record *Wallet) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = walletID(record.Address)
	}
}
