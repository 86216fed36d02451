package realtime

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PgxMembershipResolver resolves channel subscriptions and display names
// from Postgres.
type PgxMembershipResolver struct {
	pool *pgxpool.Pool
}

func NewPgxMembershipResolver(pool *pgxpool.Pool) *PgxMembershipResolver {
	return &PgxMembershipResolver{pool: pool}
}

// ChannelTopics returns one channel topic per channel the user is an
// active, non-banned member of.
func (r *PgxMembershipResolver) ChannelTopics(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT channel_id FROM channel_members WHERE user_id = $1 AND is_banned = false`,
		userID)
	if err != nil {
		return nil, errors.Wrapf(err, "query channel members user=%s", userID)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var channelID uuid.UUID
		if err := rows.Scan(&channelID); err != nil {
			return nil, errors.Wrap(err, "scan channel id")
		}
		topics = append(topics, ChannelTopic(channelID))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate channel members")
	}
	return topics, nil
}

// Username returns the user's display name, "Unknown" when the user row
// is missing.
func (r *PgxMembershipResolver) Username(ctx context.Context, userID uuid.UUID) (string, error) {
	var username string
	err := r.pool.QueryRow(ctx,
		`SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		return "Unknown", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "query username user=%s", userID)
	}
	return username, nil
}
