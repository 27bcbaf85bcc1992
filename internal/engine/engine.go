package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/model"
)

// Engine applies task-cycle and coin-ledger transitions. Every operation
// runs inside a single transaction and re-checks its precondition with a
// guarded UPDATE, so concurrent submissions against the same task or claim
// cannot double-apply a coin mutation. Coin movement is always a server-side
// delta (`coins = coins + ?`), never a value written back from a client read.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// CompletionResult reports the outcome of a task completion: the credited
// value and the child's counters after the commit.
type CompletionResult struct {
	TaskID         int64     `json:"task_id"`
	CoinValue      int       `json:"coin_value"`
	Coins          int       `json:"coins"`
	TasksCompleted int       `json:"tasks_completed"`
	CompletedAt    time.Time `json:"completed_at"`
}

// CompleteTask marks an assigned task completed and credits its coin value to
// the caller, as one atomic batch. Completing an already-completed task is a
// no-op precondition failure; the flag is re-checked inside the transaction
// rather than trusted from whatever snapshot the caller rendered.
func (e *Engine) CompleteTask(p auth.Principal, taskID int64) (*CompletionResult, error) {
	if p.Role != model.RoleChild {
		return nil, ErrNotAuthorized
	}

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var coinValue int
	var title string
	err = tx.QueryRow(`SELECT coin_value, title FROM tasks WHERE id = ?`, taskID).Scan(&coinValue, &title)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	var one int
	err = tx.QueryRow(
		`SELECT 1 FROM task_assignments WHERE task_id = ? AND child_id = ?`,
		taskID, p.UserID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return nil, ErrNotAssigned
	}
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}

	now := e.now().UTC()
	result, err := tx.Exec(
		`UPDATE tasks SET completed = 1, last_completed_at = ?, updated_at = ? WHERE id = ? AND completed = 0`,
		now, now, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrTaskAlreadyCompleted
	}

	if _, err := tx.Exec(
		`UPDATE users SET coins = coins + ?, tasks_completed = tasks_completed + 1, updated_at = ? WHERE id = ?`,
		coinValue, now, p.UserID,
	); err != nil {
		return nil, fmt.Errorf("credit coins: %w", err)
	}

	var childName string
	var parentID sql.NullInt64
	var coins, tasksCompleted int
	err = tx.QueryRow(
		`SELECT name, parent_id, coins, tasks_completed FROM users WHERE id = ?`,
		p.UserID,
	).Scan(&childName, &parentID, &coins, &tasksCompleted)
	if err != nil {
		return nil, fmt.Errorf("load child: %w", err)
	}

	if parentID.Valid {
		if _, err := tx.Exec(
			`INSERT INTO activities (parent_id, child_id, child_name, title, description, type, task_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			parentID.Int64, p.UserID, childName, title,
			fmt.Sprintf("%s completed %q and earned %d coins", childName, title, coinValue),
			model.ActivityTaskCompletion, taskID,
		); err != nil {
			return nil, fmt.Errorf("record activity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	e.logger.Info("task completed", "task_id", taskID, "child_id", p.UserID, "coins", coinValue)

	return &CompletionResult{
		TaskID:         taskID,
		CoinValue:      coinValue,
		Coins:          coins,
		TasksCompleted: tasksCompleted,
		CompletedAt:    now,
	}, nil
}

// RedemptionResult reports the claim created by a redemption. Coins are not
// deducted yet; the balance moves only on approval.
type RedemptionResult struct {
	ClaimID  int64  `json:"claim_id"`
	Ref      string `json:"ref"`
	CoinCost int    `json:"coin_cost"`
}

// RedeemReward creates a pending claim capturing the reward's cost at
// redemption time, plus a notification for the owning parent. Deduction is
// deferred to approval so a denied claim never needs a refund. The balance
// check blocks the redemption before any write if coins are short.
func (e *Engine) RedeemReward(p auth.Principal, rewardID int64) (*RedemptionResult, error) {
	if p.Role != model.RoleChild {
		return nil, ErrNotAuthorized
	}

	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var childName string
	var childParent sql.NullInt64
	var coins int
	err = tx.QueryRow(
		`SELECT name, parent_id, coins FROM users WHERE id = ?`,
		p.UserID,
	).Scan(&childName, &childParent, &coins)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load child: %w", err)
	}
	if !childParent.Valid {
		return nil, ErrNotAuthorized
	}

	var parentID int64
	var title string
	var coinCost int
	var imageURL sql.NullString
	err = tx.QueryRow(
		`SELECT parent_id, title, coin_cost, image_url FROM rewards WHERE id = ?`,
		rewardID,
	).Scan(&parentID, &title, &coinCost, &imageURL)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reward: %w", err)
	}

	// A child can only redeem from their own parent's catalog.
	if parentID != childParent.Int64 {
		return nil, ErrNotAuthorized
	}

	if coins < coinCost {
		return nil, ErrInsufficientCoins
	}

	ref := uuid.NewString()
	now := e.now().UTC()
	result, err := tx.Exec(
		`INSERT INTO reward_claims (ref, reward_id, reward_title, child_id, child_name, parent_id, coin_cost, image_url, status, claimed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref, rewardID, title, p.UserID, childName, parentID, coinCost, imageURL, model.ClaimStatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", err)
	}
	claimID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := e.insertNotification(tx, parentID,
		"New Reward Claim",
		fmt.Sprintf("%s wants to claim %q", childName, title),
		model.NotifTypeRewardRequested,
		map[string]any{
			"claim_id":     claimID,
			"claim_ref":    ref,
			"child_id":     p.UserID,
			"child_name":   childName,
			"reward_id":    rewardID,
			"reward_title": title,
			"coin_cost":    coinCost,
		},
	); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(
		`INSERT INTO activities (parent_id, child_id, child_name, title, description, type, reward_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		parentID, p.UserID, childName, title,
		fmt.Sprintf("%s requested %q for %d coins", childName, title, coinCost),
		model.ActivityRewardClaim, rewardID,
	); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	e.logger.Info("reward redeemed", "claim_id", claimID, "child_id", p.UserID, "reward_id", rewardID, "coin_cost", coinCost)

	return &RedemptionResult{ClaimID: claimID, Ref: ref, CoinCost: coinCost}, nil
}

// ApproveClaim resolves a pending claim: status flip, coin debit of the
// captured cost, and the child's notification commit together or not at all.
// The balance is not re-validated here; coins spent elsewhere since the
// redemption can drive the balance negative (see DESIGN.md).
func (e *Engine) ApproveClaim(p auth.Principal, claimID int64) error {
	if p.Role != model.RoleParent {
		return ErrNotAuthorized
	}

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	claim, err := e.loadClaim(tx, claimID, p.UserID)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	result, err := tx.Exec(
		`UPDATE reward_claims SET status = ?, approved_at = ? WHERE id = ? AND status = ?`,
		model.ClaimStatusApproved, now, claimID, model.ClaimStatusPending,
	)
	if err != nil {
		return fmt.Errorf("approve claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrClaimResolved
	}

	// Debit the cost captured at claim time, not the reward's current cost.
	if _, err := tx.Exec(
		`UPDATE users SET coins = coins - ?, updated_at = ? WHERE id = ?`,
		claim.coinCost, now, claim.childID,
	); err != nil {
		return fmt.Errorf("debit coins: %w", err)
	}

	if err := e.insertNotification(tx, claim.childID,
		"Reward Approved!",
		fmt.Sprintf("Your reward %q has been approved! %d coins have been deducted.", claim.rewardTitle, claim.coinCost),
		model.NotifTypeRewardApproved,
		map[string]any{
			"claim_id":     claimID,
			"claim_ref":    claim.ref,
			"reward_title": claim.rewardTitle,
			"coin_cost":    claim.coinCost,
			"showConfetti": true,
		},
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	e.logger.Info("claim approved", "claim_id", claimID, "parent_id", p.UserID, "child_id", claim.childID, "coin_cost", claim.coinCost)
	return nil
}

// DenyClaim resolves a pending claim without touching the balance.
func (e *Engine) DenyClaim(p auth.Principal, claimID int64) error {
	if p.Role != model.RoleParent {
		return ErrNotAuthorized
	}

	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	claim, err := e.loadClaim(tx, claimID, p.UserID)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	result, err := tx.Exec(
		`UPDATE reward_claims SET status = ?, denied_at = ? WHERE id = ? AND status = ?`,
		model.ClaimStatusDenied, now, claimID, model.ClaimStatusPending,
	)
	if err != nil {
		return fmt.Errorf("deny claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrClaimResolved
	}

	if err := e.insertNotification(tx, claim.childID,
		"Reward Request Denied",
		fmt.Sprintf("Your request for %q was not approved.", claim.rewardTitle),
		model.NotifTypeRewardDenied,
		map[string]any{
			"claim_id":     claimID,
			"claim_ref":    claim.ref,
			"reward_title": claim.rewardTitle,
		},
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	e.logger.Info("claim denied", "claim_id", claimID, "parent_id", p.UserID, "child_id", claim.childID)
	return nil
}

// DismissNotification marks a notification read. Only the recipient may
// dismiss it; repeated dismissal is a no-op.
func (e *Engine) DismissNotification(p auth.Principal, notificationID int64) error {
	result, err := e.db.Exec(
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		notificationID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("dismiss notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var ownerID int64
	err = e.db.QueryRow(`SELECT user_id FROM notifications WHERE id = ?`, notificationID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	return ErrNotAuthorized
}

type claimRow struct {
	ref         string
	childID     int64
	rewardTitle string
	coinCost    int
}

// loadClaim fetches the claim fields a decision needs and enforces that the
// caller is the owning parent.
func (e *Engine) loadClaim(tx *sql.Tx, claimID, parentID int64) (*claimRow, error) {
	var c claimRow
	var owner int64
	err := tx.QueryRow(
		`SELECT ref, child_id, reward_title, coin_cost, parent_id FROM reward_claims WHERE id = ?`,
		claimID,
	).Scan(&c.ref, &c.childID, &c.rewardTitle, &c.coinCost, &owner)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load claim: %w", err)
	}
	if owner != parentID {
		return nil, ErrNotAuthorized
	}
	return &c, nil
}

func (e *Engine) insertNotification(tx *sql.Tx, userID int64, title, message, notifType string, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO notifications (user_id, title, message, type, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, title, message, notifType, string(meta), e.now().UTC(),
	); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
