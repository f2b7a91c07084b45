package store

import (
	"context"
	"fmt"

	"github.com/skulanov/OP-test/internal/model"
)

// ExportBank builds the export document of a stored bank.
func (s *Store) ExportBank(ctx context.Context, name string) (model.BankExport, error) {
	info, bank, err := s.LoadBank(ctx, name)
	if err != nil {
		return model.BankExport{}, fmt.Errorf("load bank: %w", err)
	}
	return model.NewBankExport(info, bank), nil
}

// ExportAll builds export documents for every stored bank.
func (s *Store) ExportAll(ctx context.Context) ([]model.BankExport, error) {
	banks, err := s.ListBanks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	var out []model.BankExport
	for _, b := range banks {
		exp, err := s.ExportBank(ctx, b.Name)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", b.Name, err)
		}
		out = append(out, exp)
	}
	return out, nil
}
