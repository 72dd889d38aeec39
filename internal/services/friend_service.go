package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"social-go/internal/metrics"
	"social-go/internal/models"
	"social-go/internal/storage"
)

// ReconcileReport summarizes one repair pass over friend links.
type ReconcileReport struct {
	Scanned  int64 `json:"scanned"`
	Repaired int   `json:"repaired"` // reverse links inserted
	Pruned   int   `json:"pruned"`   // dangling links deleted
}

// FriendService keeps the friend relation symmetric.
type FriendService interface {
	// AddFriend links both users in one transaction. Calling it again is a no-op.
	AddFriend(ctx context.Context, userID, friendID string) error
	ListFriends(ctx context.Context, userID string) ([]models.User, error)
	// AreFriends is true only when both directions are stored.
	AreFriends(ctx context.Context, a, b string) (bool, error)
	// Reconcile adds missing reverse links and drops links to deleted users.
	Reconcile(ctx context.Context) (ReconcileReport, error)
}

type friendService struct {
	db         *gorm.DB
	userRepo   storage.UserRepository
	friendRepo storage.FriendRepository
	activity   ActivityRecorder
	clock      Clock
	logger     *slog.Logger
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	friendRepo storage.FriendRepository,
	activity ActivityRecorder,
	clock Clock,
	logger *slog.Logger,
) FriendService {
	if logger == nil {
		logger = slog.Default()
	}
	return &friendService{
		db:         db,
		userRepo:   userRepo,
		friendRepo: friendRepo,
		activity:   recorderOrNoop(activity),
		clock:      clock,
		logger:     logger.With("component", "friend_service"),
	}
}

func (s *friendService) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == "" || friendID == "" {
		return invalid("friendId", "is required")
	}
	if userID == friendID {
		return invalid("friendId", "cannot add yourself as a friend")
	}

	// 两个用户都必须存在，否则不做任何写入
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return lookup(fmt.Sprintf("get user %s", userID), err)
	}
	friend, err := s.userRepo.GetByID(ctx, friendID)
	if err != nil {
		return lookup(fmt.Sprintf("get user %s", friendID), err)
	}

	now := s.clock.now()
	link := models.FriendLink{UserID: user.ID, FriendID: friend.ID, CreatedAt: now}
	reverse := link.Reverse()
	reverse.CreatedAt = now

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txFriendRepo := storage.NewGormFriendRepository(tx)
		return txFriendRepo.InsertLinks(ctx, link, reverse)
	})
	if txErr != nil {
		return remote("add friend", txErr)
	}

	s.logger.Info("friend added", "user_id", user.ID, "friend_id", friend.ID)
	s.activity.Record(ctx, user.ID, models.ActionAddFriend, "Arkadaş eklendi: "+friend.Name)
	return nil
}

func (s *friendService) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, lookup("get user", err)
	}
	ids, err := s.friendRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, remote("list friend ids", err)
	}
	friends, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, remote("load friends", err)
	}
	if friends == nil {
		friends = []models.User{}
	}
	return friends, nil
}

func (s *friendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" || a == b {
		return false, nil
	}
	forward, err := s.friendRepo.HasLink(ctx, a, b)
	if err != nil {
		return false, remote("check friend link", err)
	}
	if !forward {
		return false, nil
	}
	backward, err := s.friendRepo.HasLink(ctx, b, a)
	if err != nil {
		return false, remote("check friend link", err)
	}
	return backward, nil
}

// Reconcile runs link by link, so a failure keeps the repairs made so far and
// is reported as ErrPartialWrite together with the partial report.
func (s *friendService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	scanned, err := s.friendRepo.Count(ctx)
	if err != nil {
		return report, remote("count friend links", err)
	}
	report.Scanned = scanned

	// dangling links first, otherwise their reverse would be recreated
	dangling, err := s.friendRepo.FindDangling(ctx)
	if err != nil {
		return report, remote("find dangling links", err)
	}
	for _, link := range dangling {
		if err := s.friendRepo.DeleteLink(ctx, link); err != nil {
			return report, fmt.Errorf("prune %s->%s: %w: %w", link.UserID, link.FriendID, ErrPartialWrite, err)
		}
		report.Pruned++
		metrics.FriendLinksRepaired.WithLabelValues("dangling_pruned").Inc()
	}

	asymmetric, err := s.friendRepo.FindAsymmetric(ctx)
	if err != nil {
		return report, remote("find asymmetric links", err)
	}
	now := s.clock.now()
	for _, link := range asymmetric {
		reverse := link.Reverse()
		reverse.CreatedAt = now
		if err := s.friendRepo.InsertLinks(ctx, reverse); err != nil {
			return report, fmt.Errorf("repair %s->%s: %w: %w", reverse.UserID, reverse.FriendID, ErrPartialWrite, err)
		}
		report.Repaired++
		metrics.FriendLinksRepaired.WithLabelValues("reverse_added").Inc()
	}

	if report.Repaired > 0 || report.Pruned > 0 {
		s.logger.Warn("friend links reconciled", "scanned", report.Scanned, "repaired", report.Repaired, "pruned", report.Pruned)
	} else {
		s.logger.Debug("friend links consistent", "scanned", report.Scanned)
	}
	return report, nil
}

// attachFriends fills User.Friends for every user in users.
func attachFriends(ctx context.Context, friendRepo storage.FriendRepository, users ...*models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	byUser, err := friendRepo.GetFriendIDsFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, u := range users {
		u.Friends = byUser[u.ID]
		if u.Friends == nil {
			u.Friends = []string{}
		}
	}
	return nil
}
