package social

import (
	"context"
	"errors"
	"fmt"

	"coinfm/cache"
	"coinfm/core/ledger"
	"coinfm/logger"
	"coinfm/model"
	"coinfm/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Errors returned by social operations.
var (
	ErrSelfFriend      = errors.New("cannot friend yourself")
	ErrUnknownUser     = errors.New("unknown user")
	ErrUnknownTrack    = errors.New("unknown track")
	ErrSelfDedication  = errors.New("cannot dedicate a track to yourself")
	ErrEmptyDedication = errors.New("dedication message must not be empty")
)

// Service implements friend search, symmetric friend links and dedication
// sends against the ledger.
type Service struct {
	userRepo       repository.UserRepository
	trackRepo      repository.TrackRepository
	dedicationRepo repository.DedicationRepository
	ledger         *ledger.Ledger
	pub            *cache.Publisher // optional
	dedicationCost int64
}

// NewService creates a social Service. pub may be nil.
func NewService(
	userRepo repository.UserRepository,
	trackRepo repository.TrackRepository,
	dedicationRepo repository.DedicationRepository,
	l *ledger.Ledger,
	pub *cache.Publisher,
	dedicationCost int64,
) *Service {
	return &Service{
		userRepo:       userRepo,
		trackRepo:      trackRepo,
		dedicationRepo: dedicationRepo,
		ledger:         l,
		pub:            pub,
		dedicationCost: dedicationCost,
	}
}

// SearchUsers runs a prefix query on display names. At most one page is
// returned; there is no pagination cursor.
func (s *Service) SearchUsers(prefix string, limit int) ([]*model.User, error) {
	if prefix == "" {
		return []*model.User{}, nil
	}
	return s.userRepo.SearchByNamePrefix(prefix, limit)
}

// Link makes a and b friends. Membership is symmetric and both writes
// commit in one transaction, so a half-linked pair is never observable.
func (s *Service) Link(ctx context.Context, a, b int64) error {
	if a == b {
		return ErrSelfFriend
	}
	for _, id := range []int64{a, b} {
		user, err := s.userRepo.GetUserByID(id)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUnknownUser
		}
	}

	if err := s.userRepo.LinkFriends(a, b); err != nil {
		return err
	}

	s.publishFriends(ctx, a)
	s.publishFriends(ctx, b)
	return nil
}

// Unlink removes the friend link in both directions.
func (s *Service) Unlink(ctx context.Context, a, b int64) error {
	if err := s.userRepo.UnlinkFriends(a, b); err != nil {
		return err
	}
	s.publishFriends(ctx, a)
	s.publishFriends(ctx, b)
	return nil
}

// Friends returns the user's friend documents.
func (s *Service) Friends(userID int64) ([]*model.User, error) {
	return s.userRepo.ListFriends(userID)
}

// SendDedication gifts a track from one user to another. The coin debit,
// the ledger record and the dedication document commit in one SQL
// transaction; the recipient's inbox channel is notified only after the
// commit succeeds.
func (s *Service) SendDedication(ctx context.Context, fromUID, toUID, trackID int64, message string) (*model.Dedication, error) {
	if fromUID == toUID {
		return nil, ErrSelfDedication
	}
	if message == "" {
		return nil, ErrEmptyDedication
	}

	sender, err := s.userRepo.GetUserByID(fromUID)
	if err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, ErrUnknownUser
	}
	recipient, err := s.userRepo.GetUserByID(toUID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrUnknownUser
	}
	track, err := s.trackRepo.GetTrackByID(trackID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, ErrUnknownTrack
	}

	dedication := &model.Dedication{
		ID:         uuid.NewString(),
		FromUID:    fromUID,
		FromName:   sender.Username,
		ToUID:      toUID,
		TrackID:    track.ID,
		TrackTitle: track.Title,
		Message:    message,
	}

	err = s.ledger.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		desc := fmt.Sprintf("Dedication of %q to %s", track.Title, recipient.Username)
		if _, txErr := ledger.ApplyTx(tx, fromUID, s.dedicationCost, desc, model.TxSpend); txErr != nil {
			return txErr
		}
		return tx.Create(dedication).Error
	})
	if err != nil {
		return nil, err
	}

	s.ledger.PublishBalance(ctx, fromUID)
	if s.pub != nil {
		s.pub.Publish(ctx, cache.InboxChannel(toUID), cache.EventDedication, dedication)
	}

	logger.Info("dedication sent",
		logger.Int64("fromUid", fromUID),
		logger.Int64("toUid", toUID),
		logger.Int64("trackId", trackID),
		logger.String("dedicationId", dedication.ID))

	return dedication, nil
}

// Inbox returns dedications addressed to the user, newest first.
func (s *Service) Inbox(toUID int64, limit int) ([]*model.Dedication, error) {
	return s.dedicationRepo.ListByRecipient(toUID, limit)
}

// Sent returns dedications the user has sent, newest first.
func (s *Service) Sent(fromUID int64, limit int) ([]*model.Dedication, error) {
	return s.dedicationRepo.ListBySender(fromUID, limit)
}

func (s *Service) publishFriends(ctx context.Context, userID int64) {
	if s.pub == nil {
		return
	}
	friends, err := s.userRepo.ListFriends(userID)
	if err != nil {
		logger.Warn("failed to read friend set for event", logger.Int64("userId", userID), logger.ErrorField(err))
		return
	}
	ids := make([]int64, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	s.pub.Publish(ctx, cache.UserChannel(userID), cache.EventFriends, ids)
}
