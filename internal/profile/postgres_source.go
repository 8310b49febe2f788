package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresSource reads profiles from the account_profiles table.
type PostgresSource struct {
	pool *pgxpool.Pool
}

const createProfilesSQL = `
CREATE TABLE IF NOT EXISTS account_profiles (
    address TEXT PRIMARY KEY,
    holder_name TEXT NOT NULL,
    education TEXT NOT NULL DEFAULT '',
    credit_score INT NOT NULL DEFAULT 0,
    loans NUMERIC NOT NULL DEFAULT 0,
    fixed_deposit NUMERIC NOT NULL DEFAULT 0,
    average_monthly_balance NUMERIC NOT NULL DEFAULT 0,
    father_name TEXT NOT NULL DEFAULT '',
    mother_name TEXT NOT NULL DEFAULT ''
);
`

// NewPostgresSource connects using dsn and ensures the table exists.
func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createProfilesSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresSource{pool: pool}, nil
}

func (p *PostgresSource) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresSource) Lookup(ctx context.Context, account common.Address) (Profile, error) {
	row := p.pool.QueryRow(ctx, `
SELECT holder_name, education, credit_score,
       loans::TEXT, fixed_deposit::TEXT, average_monthly_balance::TEXT,
       father_name, mother_name
FROM account_profiles
WHERE address = $1
`, addressKey(account))

	var (
		prof                    Profile
		loans, fixed, avgAmount string
	)
	err := row.Scan(&prof.HolderName, &prof.Education, &prof.CreditScore,
		&loans, &fixed, &avgAmount, &prof.FatherName, &prof.MotherName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}

	if prof.Loans, err = decimal.NewFromString(loans); err != nil {
		return Profile{}, err
	}
	if prof.FixedDeposit, err = decimal.NewFromString(fixed); err != nil {
		return Profile{}, err
	}
	if prof.AverageMonthlyBalance, err = decimal.NewFromString(avgAmount); err != nil {
		return Profile{}, err
	}
	return prof, nil
}

// Save upserts the profile of account.
func (p *PostgresSource) Save(ctx context.Context, account common.Address, prof Profile) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO account_profiles (address, holder_name, education, credit_score,
    loans, fixed_deposit, average_monthly_balance, father_name, mother_name)
VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9)
ON CONFLICT (address) DO UPDATE
SET holder_name = EXCLUDED.holder_name,
    education = EXCLUDED.education,
    credit_score = EXCLUDED.credit_score,
    loans = EXCLUDED.loans,
    fixed_deposit = EXCLUDED.fixed_deposit,
    average_monthly_balance = EXCLUDED.average_monthly_balance,
    father_name = EXCLUDED.father_name,
    mother_name = EXCLUDED.mother_name
`, addressKey(account), prof.HolderName, prof.Education, prof.CreditScore,
		prof.Loans.String(), prof.FixedDeposit.String(), prof.AverageMonthlyBalance.String(),
		prof.FatherName, prof.MotherName)
	return err
}

func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}
