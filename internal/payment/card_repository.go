package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type CardRepository interface {
	Get(ctx context.Context, userEmail string) (*Card, error)
	Save(ctx context.Context, c *Card) error
}

type cardRepo struct {
	db *sql.DB
}

func NewCardRepository(db *sql.DB) CardRepository {
	return &cardRepo{db: db}
}

func (r *cardRepo) Get(ctx context.Context, userEmail string) (*Card, error) {
	var c Card
	err := r.db.QueryRowContext(ctx, `
		SELECT user_email, card_number, card_holder, expiry_date, last_four, updated_at
		FROM payment_cards WHERE user_email = $1
	`, userEmail).Scan(&c.UserEmail, &c.CardNumber, &c.CardHolder, &c.ExpiryDate, &c.LastFour, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select payment_card: %w", err)
	}
	return &c, nil
}

func (r *cardRepo) Save(ctx context.Context, c *Card) error {
	if c.LastFour == "" {
		c.LastFour = LastFourOf(c.CardNumber)
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_cards (user_email, card_number, card_holder, expiry_date, last_four, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_email) DO UPDATE
		SET card_number = EXCLUDED.card_number,
		    card_holder = EXCLUDED.card_holder,
		    expiry_date = EXCLUDED.expiry_date,
		    last_four = EXCLUDED.last_four,
		    updated_at = NOW()
		RETURNING updated_at
	`, c.UserEmail, c.CardNumber, c.CardHolder, c.ExpiryDate, c.LastFour).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment_card: %w", err)
	}
	return nil
}
