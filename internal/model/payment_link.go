package model

import (
	"time"
)

// PaymentLink is a single payment request with its own custody wallet.
type PaymentLink struct {
	ID                    string        `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	SellerID              string        `gorm:"column:seller_id;type:varchar(64);not null;index" json:"seller_id"`
	ChainID               uint64        `gorm:"column:chain_id;not null" json:"chain_id"`
	TokenAddress          string        `gorm:"column:token_address;type:varchar(42)" json:"token_address,omitempty"`
	TokenDecimals         int           `gorm:"column:token_decimals;not null" json:"token_decimals"`
	FiatAmount            string        `gorm:"column:fiat_amount;type:varchar(78);not null" json:"fiat_amount"`
	Amount                string        `gorm:"column:amount;type:varchar(78);not null" json:"amount"`
	Description           string        `gorm:"column:description;type:text" json:"description"`
	SwapToStable          bool          `gorm:"column:swap_to_stable;not null;default:false" json:"swap_to_stable"`
	StablecoinAddress     string        `gorm:"column:stablecoin_address;type:varchar(42)" json:"stablecoin_address,omitempty"`
	SlippageBps           uint32        `gorm:"column:slippage_bps;not null;default:50" json:"slippage_bps"`
	RequiredConfirmations uint64        `gorm:"column:required_confirmations;not null" json:"required_confirmations"`
	WalletAddress         string        `gorm:"column:wallet_address;type:varchar(42);not null;uniqueIndex" json:"wallet_address"`
	EncryptedPrivateKey   string        `gorm:"column:encrypted_private_key;type:text;not null" json:"-"`
	KeySalt               string        `gorm:"column:key_salt;type:varchar(64);not null" json:"-"`
	Status                PaymentStatus `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Version               int64         `gorm:"column:version;not null;default:0" json:"-"`
	ExpiresAt             time.Time     `gorm:"column:expires_at;not null;index" json:"expires_at"`
	ActualAmountReceived  string        `gorm:"column:actual_amount_received;type:varchar(78)" json:"actual_amount_received,omitempty"`
	ReceivedAt            *time.Time    `gorm:"column:received_at" json:"received_at,omitempty"`
	CompletedAt           *time.Time    `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ErrorMessage          string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	FailedStep            string        `gorm:"column:failed_step;type:varchar(64)" json:"failed_step,omitempty"`
	CreatedAt             time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentLink) TableName() string {
	return "payment_links"
}

func (p *PaymentLink) IsNative() bool {
	return p.TokenAddress == ""
}

// PaymentLinkView is the only shape of a payment link that leaves the
// service. It has no field for key material.
type PaymentLinkView struct {
	ID                    string        `json:"id"`
	SellerID              string        `json:"seller_id"`
	ChainID               uint64        `json:"chain_id"`
	TokenAddress          string        `json:"token_address,omitempty"`
	TokenDecimals         int           `json:"token_decimals"`
	FiatAmount            string        `json:"fiat_amount"`
	Amount                string        `json:"amount"`
	Description           string        `json:"description"`
	SwapToStable          bool          `json:"swap_to_stable"`
	StablecoinAddress     string        `json:"stablecoin_address,omitempty"`
	SlippageBps           uint32        `json:"slippage_bps"`
	RequiredConfirmations uint64        `json:"required_confirmations"`
	WalletAddress         string        `json:"wallet_address"`
	Status                PaymentStatus `json:"status"`
	ExpiresAt             time.Time     `json:"expires_at"`
	ActualAmountReceived  string        `json:"actual_amount_received,omitempty"`
	ReceivedAt            *time.Time    `json:"received_at,omitempty"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage          string        `json:"error_message,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
}

func (p *PaymentLink) View() *PaymentLinkView {
	return &PaymentLinkView{
		ID:                    p.ID,
		SellerID:              p.SellerID,
		ChainID:               p.ChainID,
		TokenAddress:          p.TokenAddress,
		TokenDecimals:         p.TokenDecimals,
		FiatAmount:            p.FiatAmount,
		Amount:                p.Amount,
		Description:           p.Description,
		SwapToStable:          p.SwapToStable,
		StablecoinAddress:     p.StablecoinAddress,
		SlippageBps:           p.SlippageBps,
		RequiredConfirmations: p.RequiredConfirmations,
		WalletAddress:         p.WalletAddress,
		Status:                p.Status,
		ExpiresAt:             p.ExpiresAt,
		ActualAmountReceived:  p.ActualAmountReceived,
		ReceivedAt:            p.ReceivedAt,
		CompletedAt:           p.CompletedAt,
		ErrorMessage:          p.ErrorMessage,
		CreatedAt:             p.CreatedAt,
	}
}
