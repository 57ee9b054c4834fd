package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"example.com/octofit/internal/seed"
)

// Seed replaces every OctoFit table with the supplied dataset. Outbox tables are left alone.
func (r *Repository) Seed(ctx context.Context, ds *seed.Dataset) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `TRUNCATE leaderboard, activities, workouts, users, teams`); err != nil {
		return err
	}

	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"teams"},
		[]string{"team_id", "name", "description", "member_count", "created_at"},
		pgx.CopyFromSlice(len(ds.Teams), func(i int) ([]any, error) {
			t := ds.Teams[i]
			return []any{t.Key(), t.Name, t.Description, t.MemberCount, t.CreatedAt.Time}, nil
		})); err != nil {
		return err
	}

	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"users"},
		[]string{"user_id", "name", "alias", "email", "team_id", "total_points", "activities_completed", "joined_at", "profile_image"},
		pgx.CopyFromSlice(len(ds.Users), func(i int) ([]any, error) {
			u := ds.Users[i]
			return []any{u.Key(), u.Name, u.Alias, u.Email, u.TeamID, u.TotalPoints, u.ActivitiesCompleted, u.JoinedAt.Time, u.ProfileImage}, nil
		})); err != nil {
		return err
	}

	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"workouts"},
		[]string{"workout_id", "name", "icon", "unit", "points_per_unit", "description", "created_at"},
		pgx.CopyFromSlice(len(ds.Workouts), func(i int) ([]any, error) {
			w := ds.Workouts[i]
			return []any{w.Key(), w.Name, w.Icon, w.Unit, w.PointsPerUnit, w.Description, w.CreatedAt.Time}, nil
		})); err != nil {
		return err
	}

	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"activities"},
		[]string{"activity_id", "user_id", "user_name", "user_alias", "workout_id", "workout_name", "workout_icon", "description", "quantity", "unit", "points_earned", "completed_at", "team_id"},
		pgx.CopyFromSlice(len(ds.Activities), func(i int) ([]any, error) {
			a := ds.Activities[i]
			return []any{a.Key(), a.UserID, a.UserName, a.UserAlias, a.WorkoutID, a.WorkoutName, a.WorkoutIcon, a.Description, a.Quantity, a.Unit, a.PointsEarned, a.CompletedAt.Time, a.TeamID}, nil
		})); err != nil {
		return err
	}

	if err = replaceLeaderboard(ctx, tx, ds.Leaderboard); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
