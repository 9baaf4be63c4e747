package service

import (
	"context"

	"fleetdesk/internal/models"

	"github.com/google/uuid"
)

// LocalContractCreator mints contract identifiers without an external
// register. Used when Google Sheets is not configured; the contract window is
// still recorded in the local store on conversion.
type LocalContractCreator struct{}

func NewLocalContractCreator() *LocalContractCreator {
	return &LocalContractCreator{}
}

func (c *LocalContractCreator) CreateContract(_ context.Context, _ models.ContractRequest) (string, error) {
	return "ctr-" + uuid.NewString(), nil
}

// ContractRegister appends a contract row to an external register.
type ContractRegister interface {
	RegisterContract(ctx context.Context, contractID string, req models.ContractRequest) error
}

// SheetsContractCreator registers every contract in the shared spreadsheet.
// Registration failures abort the conversion; the booking stays CONFIRMED.
type SheetsContractCreator struct {
	register ContractRegister
}

func NewSheetsContractCreator(register ContractRegister) *SheetsContractCreator {
	return &SheetsContractCreator{register: register}
}

func (c *SheetsContractCreator) CreateContract(ctx context.Context, req models.ContractRequest) (string, error) {
	contractID := "ctr-" + uuid.NewString()
	if err := c.register.RegisterContract(ctx, contractID, req); err != nil {
		return "", err
	}
	return contractID, nil
}
