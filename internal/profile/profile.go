// Package profile serves account holder details shown next to the balance.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"atmdapp/internal/config"
)

// ErrNotFound is returned when no profile exists for an account.
var ErrNotFound = errors.New("profile not found")

// Profile is the holder data of one account. Monetary fields are in the
// contract's display unit.
type Profile struct {
	HolderName            string
	Education             string
	CreditScore           int
	Loans                 decimal.Decimal
	FixedDeposit          decimal.Decimal
	AverageMonthlyBalance decimal.Decimal
	FatherName            string
	MotherName            string
}

// Source looks up the profile of an account.
type Source interface {
	Lookup(ctx context.Context, account common.Address) (Profile, error)
}

// StaticSource returns the same profile for every account.
type StaticSource struct {
	Profile Profile
}

func (s StaticSource) Lookup(context.Context, common.Address) (Profile, error) {
	return s.Profile, nil
}

// NewStaticSource builds a StaticSource from configuration.
func NewStaticSource(cfg config.StaticProfile) (StaticSource, error) {
	loans, err := decimal.NewFromString(cfg.Loans)
	if err != nil {
		return StaticSource{}, fmt.Errorf("loans: %w", err)
	}
	fixed, err := decimal.NewFromString(cfg.FixedDeposit)
	if err != nil {
		return StaticSource{}, fmt.Errorf("fixed deposit: %w", err)
	}
	avg, err := decimal.NewFromString(cfg.AverageMonthlyBalance)
	if err != nil {
		return StaticSource{}, fmt.Errorf("average monthly balance: %w", err)
	}
	return StaticSource{Profile: Profile{
		HolderName:            cfg.HolderName,
		Education:             cfg.Education,
		CreditScore:           cfg.CreditScore,
		Loans:                 loans,
		FixedDeposit:          fixed,
		AverageMonthlyBalance: avg,
		FatherName:            cfg.FatherName,
		MotherName:            cfg.MotherName,
	}}, nil
}
