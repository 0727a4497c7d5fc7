package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"

	"taskshare/backend/internal/models"
	"taskshare/backend/internal/notify"
	"taskshare/backend/internal/services"
	"taskshare/backend/internal/store"
)

type fakeDirectory struct {
	users map[string]models.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]models.User)}
}

func (d *fakeDirectory) add(email string, active bool) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	d.users[strings.ToLower(email)] = models.User{ID: id, Email: strings.ToLower(email), IsActive: active}
	return id
}

func (d *fakeDirectory) FindActiveByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	var out []models.User
	for _, email := range emails {
		if u, ok := d.users[email]; ok && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range d.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, services.ErrNotFound
}

type SharingServiceTestSuite struct {
	suite.Suite
	store     *store.MemoryStore
	directory *fakeDirectory
	transport *recordingTransport
	notifier  *notify.Notifier
	service   *services.SharingService
	ctx       context.Context

	ownerID uuid.UUID
	bobID   uuid.UUID
	task    *models.Task
}

func (suite *SharingServiceTestSuite) SetupTest() {
	suite.store = store.NewMemoryStore()
	suite.directory = newFakeDirectory()
	suite.transport = newRecordingTransport()
	suite.notifier = notify.NewNotifier(suite.transport)
	suite.service = services.NewSharingService(suite.store, suite.directory, suite.notifier)
	suite.ctx = context.Background()

	suite.ownerID = uuid.Must(uuid.NewV4())
	suite.directory.users["owner@example.com"] = models.User{ID: suite.ownerID, Email: "owner@example.com", IsActive: true}
	suite.bobID = suite.directory.add("bob@example.com", true)

	suite.task = &models.Task{
		ID:       uuid.Must(uuid.NewV4()),
		OwnerID:  suite.ownerID,
		Title:    "Write spec",
		Status:   models.StatusPending,
		Priority: models.PriorityHigh,
		Version:  1,
	}
	suite.Require().NoError(suite.store.Insert(suite.ctx, suite.task))
}

func (suite *SharingServiceTestSuite) TestShareGrantsAccess() {
	result, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionEdit)
	suite.Require().NoError(err)
	suite.Empty(result.Unknown)
	suite.Equal([]uuid.UUID{suite.bobID}, result.Shared)

	stored, err := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Require().NoError(err)
	suite.Require().Len(stored.Shares, 1)
	suite.Equal(suite.bobID, stored.Shares[0].UserID)
	suite.Equal(models.PermissionEdit, stored.Shares[0].Permission)

	suite.notifier.Wait()
	bobEvents := suite.transport.eventsFor(suite.bobID)
	suite.Require().Len(bobEvents, 1)
	suite.Equal(notify.EventTaskShared, bobEvents[0].Type)
}

func (suite *SharingServiceTestSuite) TestShareNonOwnerDenied() {
	_, err := suite.service.Share(suite.ctx, suite.bobID, suite.task.ID, []string{"bob@example.com"}, models.PermissionView)
	suite.ErrorIs(err, services.ErrPermissionDenied)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Empty(stored.Shares)
}

func (suite *SharingServiceTestSuite) TestShareIdempotentUpsert() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionView)
	suite.Require().NoError(err)

	// Re-sharing overwrites the grant instead of appending.
	_, err = suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionEdit)
	suite.Require().NoError(err)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Require().Len(stored.Shares, 1)
	suite.Equal(models.PermissionEdit, stored.Shares[0].Permission)

	// Identical repeat call yields the same final state.
	before := stored.Shares[0]
	_, err = suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionEdit)
	suite.Require().NoError(err)
	stored, _ = suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Require().Len(stored.Shares, 1)
	suite.Equal(before.UserID, stored.Shares[0].UserID)
	suite.Equal(before.Permission, stored.Shares[0].Permission)
}

func (suite *SharingServiceTestSuite) TestSharePartialSuccess() {
	result, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID,
		[]string{"bob@example.com", "ghost@example.com"}, models.PermissionView)
	suite.Require().NoError(err)

	suite.Equal([]string{"ghost@example.com"}, result.Unknown)
	suite.Equal([]uuid.UUID{suite.bobID}, result.Shared)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Len(stored.Shares, 1)
}

func (suite *SharingServiceTestSuite) TestShareAllUnknownFails() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID,
		[]string{"ghost@example.com"}, models.PermissionView)

	var uerr *services.UnknownRecipientError
	suite.Require().ErrorAs(err, &uerr)
	suite.Equal([]string{"ghost@example.com"}, uerr.Emails)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Empty(stored.Shares)
}

func (suite *SharingServiceTestSuite) TestShareSkipsInactiveUsers() {
	suite.directory.add("gone@example.com", false)

	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID,
		[]string{"gone@example.com"}, models.PermissionView)

	var uerr *services.UnknownRecipientError
	suite.ErrorAs(err, &uerr)
}

func (suite *SharingServiceTestSuite) TestShareOwnerNeverEntersShareList() {
	result, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID,
		[]string{"owner@example.com", "bob@example.com"}, models.PermissionEdit)
	suite.Require().NoError(err)
	suite.Equal([]uuid.UUID{suite.bobID}, result.Shared)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Require().Len(stored.Shares, 1)
	suite.NotEqual(suite.ownerID, stored.Shares[0].UserID)
}

func (suite *SharingServiceTestSuite) TestShareNormalizesEmailCase() {
	result, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID,
		[]string{"  Bob@Example.COM "}, models.PermissionView)
	suite.Require().NoError(err)
	suite.Equal([]uuid.UUID{suite.bobID}, result.Shared)
}

func (suite *SharingServiceTestSuite) TestShareInvalidPermission() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID,
		[]string{"bob@example.com"}, models.Permission("admin"))

	var verr *services.ValidationError
	suite.ErrorAs(err, &verr)
}

func (suite *SharingServiceTestSuite) TestShareTaskNotFound() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, uuid.Must(uuid.NewV4()),
		[]string{"bob@example.com"}, models.PermissionView)
	suite.ErrorIs(err, services.ErrNotFound)
}

func (suite *SharingServiceTestSuite) TestUnshare() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionEdit)
	suite.Require().NoError(err)

	task, err := suite.service.Unshare(suite.ctx, suite.ownerID, suite.task.ID, suite.bobID)
	suite.Require().NoError(err)
	suite.Empty(task.Shares)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Empty(stored.Shares)
}

func (suite *SharingServiceTestSuite) TestUnshareAbsentTargetIsNoop() {
	task, err := suite.service.Unshare(suite.ctx, suite.ownerID, suite.task.ID, suite.bobID)
	suite.Require().NoError(err)
	suite.Empty(task.Shares)
	// Version untouched: nothing was written.
	suite.Equal(int64(1), task.Version)
}

func (suite *SharingServiceTestSuite) TestUnshareNonOwnerDenied() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionEdit)
	suite.Require().NoError(err)

	_, err = suite.service.Unshare(suite.ctx, suite.bobID, suite.task.ID, suite.bobID)
	suite.ErrorIs(err, services.ErrPermissionDenied)

	stored, _ := suite.store.FindByID(suite.ctx, suite.task.ID)
	suite.Len(stored.Shares, 1)
}

func (suite *SharingServiceTestSuite) TestUnshareNotifiesRevokedUser() {
	_, err := suite.service.Share(suite.ctx, suite.ownerID, suite.task.ID, []string{"bob@example.com"}, models.PermissionView)
	suite.Require().NoError(err)
	suite.notifier.Wait()
	before := len(suite.transport.eventsFor(suite.bobID))

	_, err = suite.service.Unshare(suite.ctx, suite.ownerID, suite.task.ID, suite.bobID)
	suite.Require().NoError(err)
	suite.notifier.Wait()

	events := suite.transport.eventsFor(suite.bobID)
	suite.Require().Len(events, before+1)
	suite.Equal(notify.EventTaskUpdated, events[len(events)-1].Type)
}

func TestSharingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SharingServiceTestSuite))
}
