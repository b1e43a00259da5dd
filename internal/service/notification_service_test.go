package service

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/models"
)

type memoryNotificationRepo struct {
	mu            sync.Mutex
	notifications []models.Notification
	nextID        uint
}

func (r *memoryNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	notification.ID = r.nextID
	notification.CreatedAt = time.Now()
	r.notifications = append(r.notifications, *notification)
	return nil
}

func (r *memoryNotificationRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, 0)
	for _, notification := range r.notifications {
		if notification.UserID == userID {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (r *memoryNotificationRepo) MarkRead(ctx context.Context, id, userID uint) (models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, notification := range r.notifications {
		if notification.ID == id && notification.UserID == userID {
			r.notifications[i].Read = true
			return r.notifications[i], nil
		}
	}
	return models.Notification{}, gorm.ErrRecordNotFound
}

func newNotificationService(t *testing.T, withRedis bool) (NotificationService, *memoryNotificationRepo) {
	t.Helper()

	repo := &memoryNotificationRepo{}
	validate := validator.New(validator.WithRequiredStructEnabled())

	var client *redis.Client
	if withRedis {
		server := miniredis.RunT(t)
		client = redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
	}

	return NewNotificationService(repo, client, "examind", nil, validate, testLogger()), repo
}

func TestNotificationPublishPersistsAndDelivers(t *testing.T) {
	svc, repo := newNotificationService(t, false)

	stream, cleanup := svc.Subscribe(42)
	defer cleanup()

	published, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		UserID:  42,
		Kind:    models.NotificationTestResult,
		Message: "You scored 100%",
		Payload: map[string]interface{}{"test_id": 7},
	})
	require.NoError(t, err)
	require.NotZero(t, published.ID)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
		require.Equal(t, "You scored 100%", received.Message)
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered to subscriber")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.notifications, 1)
}

func TestNotificationPublishSanitizesMessage(t *testing.T) {
	svc, _ := newNotificationService(t, false)

	published, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		UserID:  1,
		Kind:    models.NotificationTestAssigned,
		Message: `New test <script>alert("x")</script>available`,
	})
	require.NoError(t, err)
	require.NotContains(t, published.Message, "<script>")

	_, err = svc.Publish(context.Background(), dto.NotificationPublishRequest{
		UserID:  1,
		Kind:    models.NotificationTestAssigned,
		Message: `<script>only markup</script>`,
	})
	require.Error(t, err)
}

func TestNotificationSubscribeIsPerUser(t *testing.T) {
	svc, _ := newNotificationService(t, false)

	mine, cleanupMine := svc.Subscribe(1)
	defer cleanupMine()
	other, cleanupOther := svc.Subscribe(2)
	defer cleanupOther()

	_, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		UserID:  1,
		Kind:    models.NotificationDueExtended,
		Message: "Deadline moved",
	})
	require.NoError(t, err)

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("target user did not receive the notification")
	}

	select {
	case <-other:
		t.Fatal("notification leaked to another user's stream")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotificationPublishRelaysThroughRedis(t *testing.T) {
	svc, _ := newNotificationService(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	_, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		UserID:  5,
		Kind:    models.NotificationTestResult,
		Message: "Relayed",
	})
	require.NoError(t, err)
}

func TestNotificationMarkRead(t *testing.T) {
	svc, _ := newNotificationService(t, false)

	published, err := svc.Publish(context.Background(), dto.NotificationPublishRequest{
		UserID:  3,
		Kind:    models.NotificationTestResult,
		Message: "Result ready",
	})
	require.NoError(t, err)
	require.False(t, published.Read)

	read, err := svc.MarkRead(context.Background(), published.ID, 3)
	require.NoError(t, err)
	require.True(t, read.Read)

	// Another user's notification stays out of reach.
	_, err = svc.MarkRead(context.Background(), published.ID, 99)
	require.Error(t, err)
}

func TestNotificationListRequiresUser(t *testing.T) {
	svc, _ := newNotificationService(t, false)

	_, err := svc.List(context.Background(), 0, 10, 0)
	require.ErrorIs(t, err, ErrValidation)
}
