//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"triplink_chat/internal/models"
	"triplink_chat/internal/storage"
)

var pgDB *storage.Database

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("triplink"),
		postgres.WithUsername("triplink"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		os.Exit(1)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}

	pgDB, err = storage.NewPostgresDB(connStr)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	if err := pgDB.RunMigrations("../storage/migrations"); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	code := m.Run()

	_ = pgDB.Close()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func TestPostgres_GetOrCreate_Concurrent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users := NewUserRepository(pgDB)
	rooms := NewRoomRepository(pgDB)

	suffix := time.Now().UnixNano()
	traveler := seedUser(t, users, fmt.Sprintf("t%d@x.com", suffix), models.RoleTraveler, "Tara")
	agent := seedUser(t, users, fmt.Sprintf("a%d@x.com", suffix), models.RoleAgent, "Asha")

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[uint]struct{}{}
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, isNew, err := rooms.GetOrCreate(ctx, traveler.ID, agent.ID)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[room.ID] = struct{}{}
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	req.Len(ids, 1)
	req.Equal(1, created)
}

func TestPostgres_MessagesAndUnread(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users := NewUserRepository(pgDB)
	rooms := NewRoomRepository(pgDB)
	messages := NewMessageRepository(pgDB, PageLimits{Default: DefaultPageSize, Max: MaxPageSize})

	suffix := time.Now().UnixNano()
	traveler := seedUser(t, users, fmt.Sprintf("t%d@x.com", suffix), models.RoleTraveler, "Tara")
	agent := seedUser(t, users, fmt.Sprintf("a%d@x.com", suffix), models.RoleAgent, "Asha")
	room, _, err := rooms.GetOrCreate(ctx, traveler.ID, agent.ID)
	req.NoError(err)

	for i := 0; i < 40; i++ {
		msg, err := messages.Append(ctx, room.ID, agent.ID, fmt.Sprintf("m%d", i))
		req.NoError(err)
		req.NoError(rooms.Touch(ctx, room.ID, msg.CreatedAt))
	}

	page, err := messages.ListPage(ctx, room.ID, PageQuery{})
	req.NoError(err)
	req.Len(page.Messages, DefaultPageSize)
	req.True(page.HasMore)
	req.Equal("m39", page.Messages[0].Text)
	req.Equal("Asha", page.Messages[0].Sender.DisplayName())

	older, err := messages.ListPage(ctx, room.ID, PageQuery{BeforeID: page.Messages[len(page.Messages)-1].ID})
	req.NoError(err)
	req.Len(older.Messages, 10)
	req.False(older.HasMore)

	summary, err := messages.UnreadCountFor(ctx, traveler.ID)
	req.NoError(err)
	req.EqualValues(40, summary.Total)
	req.EqualValues(1, summary.RoomsWithUnread)

	marked, err := messages.MarkAllReadExcept(ctx, room.ID, traveler.ID)
	req.NoError(err)
	req.EqualValues(40, marked)

	last, err := messages.LastMessages(ctx, []uint{room.ID})
	req.NoError(err)
	req.Equal("m39", last[room.ID].Text)
}

func TestPostgres_WithRoomLock_SerializesWriters(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repos := NewRepositories(pgDB, PageLimits{Default: DefaultPageSize, Max: MaxPageSize})

	suffix := time.Now().UnixNano()
	traveler := seedUser(t, repos.User, fmt.Sprintf("t%d@x.com", suffix), models.RoleTraveler, "Tara")
	agent := seedUser(t, repos.User, fmt.Sprintf("a%d@x.com", suffix), models.RoleAgent, "Asha")
	room, _, err := repos.Room.GetOrCreate(ctx, traveler.ID, agent.ID)
	req.NoError(err)

	// When many writers append under the room lock, each recording the id it got
	const writers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		order []uint
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repos.WithRoomLock(ctx, room.ID, func(tx *Repositories) error {
				msg, err := tx.Message.Append(ctx, room.ID, agent.ID, fmt.Sprintf("m%d", i))
				if err != nil {
					return err
				}
				mu.Lock()
				order = append(order, msg.ID)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Then the ids were handed out in the order the lock was granted
	req.Len(order, writers)
	req.IsIncreasing(order)
}
