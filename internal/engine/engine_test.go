package engine

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/taskquest/taskquest/internal/auth"
	"github.com/taskquest/taskquest/internal/database"
	"github.com/taskquest/taskquest/internal/model"
	"github.com/taskquest/taskquest/internal/store"
)

type fixture struct {
	db     *sql.DB
	engine *Engine
	users  *store.UserStore
	tasks  *store.TaskStore
	reward *store.RewardStore
	claims *store.ClaimStore
	notifs *store.NotificationStore

	parent *model.User
	child  *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		db:     db,
		engine: New(db, logger),
		users:  store.NewUserStore(db),
		tasks:  store.NewTaskStore(db),
		reward: store.NewRewardStore(db),
		claims: store.NewClaimStore(db),
		notifs: store.NewNotificationStore(db),
	}

	f.parent, err = f.users.CreateParent("mom@example.com", "Mom", "hash")
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	f.child, err = f.users.CreateChild(f.parent.ID, "kid@example.com", "Kid", "hash")
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return f
}

func (f *fixture) asChild() auth.Principal {
	return auth.Principal{UserID: f.child.ID, Role: model.RoleChild}
}

func (f *fixture) asParent() auth.Principal {
	return auth.Principal{UserID: f.parent.ID, Role: model.RoleParent}
}

func (f *fixture) coins(t *testing.T, userID int64) int {
	t.Helper()
	u, err := f.users.GetByID(userID)
	if err != nil || u == nil {
		t.Fatalf("load user %d: %v", userID, err)
	}
	return u.Coins
}

func TestCompleteTaskCreditsOnce(t *testing.T) {
	f := setup(t)

	task, err := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{f.child.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	result, err := f.engine.CompleteTask(f.asChild(), task.ID)
	if err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if result.Coins != 5 {
		t.Errorf("coins = %d, want 5", result.Coins)
	}
	if result.TasksCompleted != 1 {
		t.Errorf("tasks_completed = %d, want 1", result.TasksCompleted)
	}

	got, _ := f.tasks.GetByID(task.ID)
	if !got.Completed || got.LastCompletedAt == nil {
		t.Error("task should be completed with timestamp set")
	}

	// Retrying is a precondition failure and credits nothing.
	_, err = f.engine.CompleteTask(f.asChild(), task.ID)
	if !errors.Is(err, ErrTaskAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrTaskAlreadyCompleted", err)
	}
	if f.coins(t, f.child.ID) != 5 {
		t.Errorf("coins after retry = %d, want 5", f.coins(t, f.child.ID))
	}
}

func TestCompleteTaskRequiresAssignment(t *testing.T) {
	f := setup(t)

	sibling, _ := f.users.CreateChild(f.parent.ID, "sib@example.com", "Sib", "hash")
	task, _ := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{sibling.ID})

	_, err := f.engine.CompleteTask(f.asChild(), task.ID)
	if !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("err = %v, want ErrNotAssigned", err)
	}
	if f.coins(t, f.child.ID) != 0 {
		t.Error("unassigned completion must not credit")
	}
}

func TestCompleteTaskParentForbidden(t *testing.T) {
	f := setup(t)

	task, _ := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{f.child.ID})
	_, err := f.engine.CompleteTask(f.asParent(), task.ID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestCompleteTaskNotFound(t *testing.T) {
	f := setup(t)

	_, err := f.engine.CompleteTask(f.asChild(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCompleteTaskRecordsActivity(t *testing.T) {
	f := setup(t)

	task, _ := f.tasks.Create("Make bed", "", 5, model.TaskTypeDaily, "", f.parent.ID, []int64{f.child.ID})
	if _, err := f.engine.CompleteTask(f.asChild(), task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	activities, err := store.NewActivityStore(f.db).ListByParent(f.parent.ID, 0)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(activities) != 1 {
		t.Fatalf("activities = %d, want 1", len(activities))
	}
	if activities[0].Type != model.ActivityTaskCompletion {
		t.Errorf("type = %q, want %q", activities[0].Type, model.ActivityTaskCompletion)
	}
	if activities[0].ChildName != "Kid" {
		t.Errorf("child_name = %q, want Kid", activities[0].ChildName)
	}
}

func TestRedeemRewardDoesNotDebit(t *testing.T) {
	f := setup(t)

	f.db.Exec(`UPDATE users SET coins = 50 WHERE id = ?`, f.child.ID)
	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)

	result, err := f.engine.RedeemReward(f.asChild(), reward.ID)
	if err != nil {
		t.Fatalf("redeem reward: %v", err)
	}
	if result.CoinCost != 30 {
		t.Errorf("coin_cost = %d, want 30", result.CoinCost)
	}
	if result.Ref == "" {
		t.Error("claim ref should be set")
	}

	// Balance untouched until approval.
	if f.coins(t, f.child.ID) != 50 {
		t.Errorf("coins = %d, want 50", f.coins(t, f.child.ID))
	}

	claim, _ := f.claims.GetByID(result.ClaimID)
	if claim == nil || claim.Status != model.ClaimStatusPending {
		t.Fatalf("claim = %+v, want pending", claim)
	}

	// Parent got the approval request.
	notifs, _ := f.notifs.ListUnread(f.parent.ID)
	if len(notifs) != 1 {
		t.Fatalf("parent notifications = %d, want 1", len(notifs))
	}
	if notifs[0].Type != model.NotifTypeRewardRequested {
		t.Errorf("type = %q, want %q", notifs[0].Type, model.NotifTypeRewardRequested)
	}
}

func TestRedeemRewardInsufficientCoins(t *testing.T) {
	f := setup(t)

	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)

	_, err := f.engine.RedeemReward(f.asChild(), reward.ID)
	if !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("err = %v, want ErrInsufficientCoins", err)
	}

	claims, _ := f.claims.ListByChild(f.child.ID)
	if len(claims) != 0 {
		t.Error("short balance must not create a claim")
	}
	notifs, _ := f.notifs.ListUnread(f.parent.ID)
	if len(notifs) != 0 {
		t.Error("short balance must not notify the parent")
	}
}

func TestRedeemRewardCrossFamilyForbidden(t *testing.T) {
	f := setup(t)

	other, _ := f.users.CreateParent("dad@example.com", "Dad", "hash")
	reward, _ := f.reward.Create(other.ID, "Candy", "", 10, nil)
	f.db.Exec(`UPDATE users SET coins = 100 WHERE id = ?`, f.child.ID)

	_, err := f.engine.RedeemReward(f.asChild(), reward.ID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestApproveClaimDebitsCapturedCost(t *testing.T) {
	f := setup(t)

	f.db.Exec(`UPDATE users SET coins = 50 WHERE id = ?`, f.child.ID)
	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)
	result, _ := f.engine.RedeemReward(f.asChild(), reward.ID)

	// Reprice the reward after the claim; the debit must use the captured cost.
	if _, err := f.reward.Update(reward.ID, "Ice cream", "", 99, nil); err != nil {
		t.Fatalf("reprice reward: %v", err)
	}

	if err := f.engine.ApproveClaim(f.asParent(), result.ClaimID); err != nil {
		t.Fatalf("approve claim: %v", err)
	}

	if f.coins(t, f.child.ID) != 20 {
		t.Errorf("coins = %d, want 20", f.coins(t, f.child.ID))
	}

	claim, _ := f.claims.GetByID(result.ClaimID)
	if claim.Status != model.ClaimStatusApproved {
		t.Errorf("status = %q, want approved", claim.Status)
	}
	if claim.ApprovedAt == nil {
		t.Error("approved_at should be set")
	}

	notifs, _ := f.notifs.ListUnread(f.child.ID)
	if len(notifs) != 1 {
		t.Fatalf("child notifications = %d, want 1", len(notifs))
	}
	if notifs[0].Type != model.NotifTypeRewardApproved {
		t.Errorf("type = %q, want %q", notifs[0].Type, model.NotifTypeRewardApproved)
	}
	if notifs[0].Metadata["showConfetti"] != true {
		t.Error("approval notification should carry showConfetti")
	}
}

func TestApproveClaimOnlyOnce(t *testing.T) {
	f := setup(t)

	f.db.Exec(`UPDATE users SET coins = 50 WHERE id = ?`, f.child.ID)
	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)
	result, _ := f.engine.RedeemReward(f.asChild(), reward.ID)

	if err := f.engine.ApproveClaim(f.asParent(), result.ClaimID); err != nil {
		t.Fatalf("approve claim: %v", err)
	}

	// Second approve is a precondition failure: no second debit, no second
	// notification.
	err := f.engine.ApproveClaim(f.asParent(), result.ClaimID)
	if !errors.Is(err, ErrClaimResolved) {
		t.Fatalf("err = %v, want ErrClaimResolved", err)
	}
	if f.coins(t, f.child.ID) != 20 {
		t.Errorf("coins = %d, want 20 after double approve", f.coins(t, f.child.ID))
	}
	notifs, _ := f.notifs.ListUnread(f.child.ID)
	if len(notifs) != 1 {
		t.Errorf("child notifications = %d, want 1", len(notifs))
	}

	// Denying a resolved claim fails the same way.
	err = f.engine.DenyClaim(f.asParent(), result.ClaimID)
	if !errors.Is(err, ErrClaimResolved) {
		t.Fatalf("deny after approve: err = %v, want ErrClaimResolved", err)
	}
	claim, _ := f.claims.GetByID(result.ClaimID)
	if claim.Status != model.ClaimStatusApproved {
		t.Errorf("status = %q, want approved to stick", claim.Status)
	}
}

func TestApproveClaimAllowsNegativeBalance(t *testing.T) {
	f := setup(t)

	f.db.Exec(`UPDATE users SET coins = 30 WHERE id = ?`, f.child.ID)
	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)
	result, _ := f.engine.RedeemReward(f.asChild(), reward.ID)

	// The balance drops between redemption and approval.
	f.db.Exec(`UPDATE users SET coins = 10 WHERE id = ?`, f.child.ID)

	if err := f.engine.ApproveClaim(f.asParent(), result.ClaimID); err != nil {
		t.Fatalf("approve claim: %v", err)
	}
	if f.coins(t, f.child.ID) != -20 {
		t.Errorf("coins = %d, want -20", f.coins(t, f.child.ID))
	}
}

func TestDenyClaimKeepsBalance(t *testing.T) {
	f := setup(t)

	f.db.Exec(`UPDATE users SET coins = 50 WHERE id = ?`, f.child.ID)
	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)
	result, _ := f.engine.RedeemReward(f.asChild(), reward.ID)

	if err := f.engine.DenyClaim(f.asParent(), result.ClaimID); err != nil {
		t.Fatalf("deny claim: %v", err)
	}

	if f.coins(t, f.child.ID) != 50 {
		t.Errorf("coins = %d, want 50", f.coins(t, f.child.ID))
	}

	claim, _ := f.claims.GetByID(result.ClaimID)
	if claim.Status != model.ClaimStatusDenied {
		t.Errorf("status = %q, want denied", claim.Status)
	}
	if claim.DeniedAt == nil {
		t.Error("denied_at should be set")
	}

	notifs, _ := f.notifs.ListUnread(f.child.ID)
	if len(notifs) != 1 || notifs[0].Type != model.NotifTypeRewardDenied {
		t.Fatalf("child notifications = %+v, want one denial", notifs)
	}
}

func TestClaimDecisionRequiresOwningParent(t *testing.T) {
	f := setup(t)

	f.db.Exec(`UPDATE users SET coins = 50 WHERE id = ?`, f.child.ID)
	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)
	result, _ := f.engine.RedeemReward(f.asChild(), reward.ID)

	other, _ := f.users.CreateParent("dad@example.com", "Dad", "hash")
	stranger := auth.Principal{UserID: other.ID, Role: model.RoleParent}

	if err := f.engine.ApproveClaim(stranger, result.ClaimID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("approve by stranger: err = %v, want ErrNotAuthorized", err)
	}
	if err := f.engine.ApproveClaim(f.asChild(), result.ClaimID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("approve by child: err = %v, want ErrNotAuthorized", err)
	}
}

func TestDismissNotification(t *testing.T) {
	f := setup(t)

	n, err := f.notifs.Create(f.child.ID, "Hi", "hello", model.NotifTypeRewardApproved, nil)
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}

	if err := f.engine.DismissNotification(f.asChild(), n.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	unread, _ := f.notifs.ListUnread(f.child.ID)
	if len(unread) != 0 {
		t.Error("notification should be read")
	}

	// Dismissing again is a no-op.
	if err := f.engine.DismissNotification(f.asChild(), n.ID); err != nil {
		t.Fatalf("second dismiss: %v", err)
	}

	// Another user cannot dismiss it.
	if err := f.engine.DismissNotification(f.asParent(), n.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("foreign dismiss: err = %v, want ErrNotAuthorized", err)
	}

	if err := f.engine.DismissNotification(f.asChild(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing dismiss: err = %v, want ErrNotFound", err)
	}
}

// TestEarnAndSpendRoundTrip walks the full cycle: complete tasks to earn,
// redeem, approve, and land back where the ledger says.
func TestEarnAndSpendRoundTrip(t *testing.T) {
	f := setup(t)

	for i, title := range []string{"Make bed", "Dishes", "Homework"} {
		task, err := f.tasks.Create(title, "", 10, model.TaskTypeOneTime, "", f.parent.ID, []int64{f.child.ID})
		if err != nil {
			t.Fatalf("create task %d: %v", i, err)
		}
		if _, err := f.engine.CompleteTask(f.asChild(), task.ID); err != nil {
			t.Fatalf("complete task %d: %v", i, err)
		}
	}
	if f.coins(t, f.child.ID) != 30 {
		t.Fatalf("coins = %d, want 30", f.coins(t, f.child.ID))
	}

	reward, _ := f.reward.Create(f.parent.ID, "Ice cream", "", 30, nil)
	result, err := f.engine.RedeemReward(f.asChild(), reward.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := f.engine.ApproveClaim(f.asParent(), result.ClaimID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if f.coins(t, f.child.ID) != 0 {
		t.Errorf("coins = %d, want 0", f.coins(t, f.child.ID))
	}

	child, _ := f.users.GetByID(f.child.ID)
	if child.TasksCompleted != 3 {
		t.Errorf("tasks_completed = %d, want 3", child.TasksCompleted)
	}
}
