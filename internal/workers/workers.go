package workers

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StartReconcileWorker starts a background routine that repairs drift in the
// denormalized challenges.member_count column. Joins and leaves keep the
// counter correct transactionally; this is a safety net for rows touched by
// manual intervention or partial restores.
func StartReconcileWorker(db *pgxpool.Pool) {
	ticker := time.NewTicker(1 * time.Hour)

	go func() {
		for range ticker.C {
			reconcileMemberCounts(db)
		}
	}()
}

func reconcileMemberCounts(db *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tag, err := db.Exec(ctx, `
		UPDATE challenges c
		SET member_count = counted.n
		FROM (
			SELECT challenge_id, COUNT(*) AS n
			FROM challenge_members
			GROUP BY challenge_id
		) counted
		WHERE counted.challenge_id = c.id AND c.member_count <> counted.n
	`)
	if err != nil {
		log.Printf("Error reconciling member counts: %v", err)
		return
	}
	fixed := tag.RowsAffected()

	// Challenges everyone has left have no row in the grouped subquery.
	tag, err = db.Exec(ctx, `
		UPDATE challenges c
		SET member_count = 0
		WHERE c.member_count <> 0
		  AND NOT EXISTS (SELECT 1 FROM challenge_members cm WHERE cm.challenge_id = c.id)
	`)
	if err != nil {
		log.Printf("Error reconciling empty challenges: %v", err)
		return
	}
	fixed += tag.RowsAffected()

	if fixed > 0 {
		log.Printf("Reconciled member_count on %d challenges", fixed)
	}
}
