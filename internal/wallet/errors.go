package wallet

import "errors"

var (
	// ErrWalletGeneration means every generated address collided with an
	// issued one. It points at an entropy fault and is never retried.
	ErrWalletGeneration = errors.New("wallet generation failed: address collision budget exhausted")
	// ErrDecryption is returned for any ciphertext that fails authentication.
	ErrDecryption  = errors.New("wallet key decryption failed")
	ErrEmptySecret = errors.New("wallet encryption secret is empty")
)
