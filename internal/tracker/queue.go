package tracker

import "sync"

// UserInfo is the minimum we need to remember about a Telegram user while
// they wait for admin approval.
type UserInfo struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// ApprovalQueue holds users waiting to be enabled by the admin, so the full
// user details are still around when the approval callback arrives.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[int64]UserInfo
}

func NewApprovalQueue() *ApprovalQueue {
	return &ApprovalQueue{pending: make(map[int64]UserInfo)}
}

// Add queues the user for approval.
func (q *ApprovalQueue) Add(user UserInfo) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[user.ID] = user
}

// Contains reports whether the user is already waiting.
func (q *ApprovalQueue) Contains(userID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[userID]
	return ok
}

// Take removes and returns the queued user, if present.
func (q *ApprovalQueue) Take(userID int64) (UserInfo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	user, ok := q.pending[userID]
	if ok {
		delete(q.pending, userID)
	}
	return user, ok
}
