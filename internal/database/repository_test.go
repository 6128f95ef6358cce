package database

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/polygon-manager/backend/internal/config"
	"github.com/polygon-manager/backend/internal/geometry"
)

var square = []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

func newSQLiteRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "polygon.db")
	repo, err := NewSQLiteRepository(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(repo.Close)
	return repo, path
}

// repositories returns every store available in this environment.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	repos := map[string]Repository{}

	sqliteRepo, _ := newSQLiteRepo(t)
	repos["sqlite"] = sqliteRepo

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		pg, err := NewPostgresRepository(&config.Config{DatabaseURL: url}, zap.NewNop())
		require.NoError(t, err)
		_, err = pg.pool.Exec(context.Background(), `TRUNCATE polygons RESTART IDENTITY`)
		require.NoError(t, err)
		t.Cleanup(pg.Close)
		repos["postgres"] = pg
	}
	return repos
}

func TestRepository_CreateAndList(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := repo.Create(ctx, "P1", square)
			require.NoError(t, err)
			assert.Equal(t, int64(1), created.ID)
			assert.Equal(t, "P1", created.Name)
			assert.Equal(t, square, created.Points)

			polygons, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, polygons, 1)
			assert.Equal(t, *created, polygons[0])
		})
	}
}

func TestRepository_EmptyListIsNotNil(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			polygons, err := repo.List(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, polygons)
			assert.Empty(t, polygons)
		})
	}
}

func TestRepository_RoundTripPrecision(t *testing.T) {
	points := []geometry.Point{
		{X: 1.5, Y: 2.7}, {X: 3.14, Y: 2.71}, {X: 0.30000000000000004, Y: 1e-7},
		{X: -999999.999999, Y: 123456.789012345}, {X: 5e-324, Y: -0},
	}

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created, err := repo.Create(ctx, "多边形 🔺", points)
			require.NoError(t, err)

			got, err := repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "多边形 🔺", got.Name)
			assert.Equal(t, points, got.Points)
		})
	}
}

func TestRepository_IDsAreMonotonicAndNeverReused(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var last int64
			for i := 0; i < 5; i++ {
				p, err := repo.Create(ctx, "P", square)
				require.NoError(t, err)
				assert.Greater(t, p.ID, last)
				last = p.ID
			}

			deleted, err := repo.DeleteByID(ctx, last)
			require.NoError(t, err)
			assert.True(t, deleted)

			next, err := repo.Create(ctx, "P", square)
			require.NoError(t, err)
			assert.Greater(t, next.ID, last)
		})
	}
}

func TestRepository_DeleteByID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p, err := repo.Create(ctx, "P", square)
			require.NoError(t, err)

			deleted, err := repo.DeleteByID(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = repo.DeleteByID(ctx, p.ID)
			require.NoError(t, err)
			assert.False(t, deleted)

			deleted, err = repo.DeleteByID(ctx, 999)
			require.NoError(t, err)
			assert.False(t, deleted)

			got, err := repo.GetByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestRepository_RejectsInvalidPolygon(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.Create(ctx, "  ", square)
			assert.ErrorIs(t, err, ErrInvalidPolygon)

			_, err = repo.Create(ctx, "P", square[:2])
			assert.ErrorIs(t, err, ErrInvalidPolygon)

			polygons, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, polygons)
		})
	}
}

func TestRepository_ConcurrentCreates(t *testing.T) {
	const workers = 20

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids []int64
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					p, err := repo.Create(ctx, "P", square)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					ids = append(ids, p.ID)
					mu.Unlock()
				}()
			}
			wg.Wait()

			require.Len(t, ids, workers)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for i := 1; i < len(ids); i++ {
				assert.NotEqual(t, ids[i-1], ids[i])
			}

			polygons, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Len(t, polygons, workers)
			for i := 1; i < len(polygons); i++ {
				assert.Less(t, polygons[i-1].ID, polygons[i].ID)
			}
		})
	}
}

func TestRepository_DeleteRacingList(t *testing.T) {
	const readers = 4
	target := []geometry.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1.5, Y: 3}, {X: 1, Y: 2}}

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			before, err := repo.Create(ctx, "before", square)
			require.NoError(t, err)
			victim, err := repo.Create(ctx, "victim", target)
			require.NoError(t, err)
			after, err := repo.Create(ctx, "after", square)
			require.NoError(t, err)

			var (
				wg      sync.WaitGroup
				started sync.WaitGroup
				stop    = make(chan struct{})
			)
			started.Add(readers)
			for i := 0; i < readers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for n := 0; ; n++ {
						if n == 1 {
							started.Done()
						}
						select {
						case <-stop:
							return
						default:
						}

						polygons, err := repo.List(ctx)
						if !assert.NoError(t, err) {
							if n == 0 {
								started.Done()
							}
							return
						}
						ids := make([]int64, 0, len(polygons))
						for _, p := range polygons {
							ids = append(ids, p.ID)
							if p.ID == victim.ID {
								assert.Equal(t, "victim", p.Name)
								assert.Equal(t, target, p.Points)
							}
						}
						assert.Contains(t, ids, before.ID)
						assert.Contains(t, ids, after.ID)
						assert.True(t, len(ids) == 2 || len(ids) == 3, "unexpected list %v", ids)
					}
				}()
			}

			started.Wait()
			deleted, err := repo.DeleteByID(ctx, victim.ID)
			require.NoError(t, err)
			assert.True(t, deleted)
			time.Sleep(20 * time.Millisecond)
			close(stop)
			wg.Wait()

			polygons, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, polygons, 2)
			assert.Equal(t, before.ID, polygons[0].ID)
			assert.Equal(t, after.ID, polygons[1].ID)
		})
	}
}

func TestSQLiteRepository_SurvivesReopen(t *testing.T) {
	repo, path := newSQLiteRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, "P1", square)
	require.NoError(t, err)
	second, err := repo.Create(ctx, "P2", square)
	require.NoError(t, err)
	_, err = repo.DeleteByID(ctx, second.ID)
	require.NoError(t, err)
	repo.Close()

	reopened, err := NewSQLiteRepository(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	polygons, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, polygons, 1)
	assert.Equal(t, first.ID, polygons[0].ID)

	third, err := reopened.Create(ctx, "P3", square)
	require.NoError(t, err)
	assert.Greater(t, third.ID, second.ID)
}

func TestSQLitePath(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"sqlite://./data/polygon.db", "./data/polygon.db"},
		{"sqlite:///./data/polygon.db", "./data/polygon.db"},
		{"sqlite:///polygon.db", "polygon.db"},
		{"sqlite:////var/lib/polygon.db", "/var/lib/polygon.db"},
		{"file:polygon.db", "polygon.db"},
		{"polygon.db", "polygon.db"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, sqlitePath(tt.url))
		})
	}
}

func TestNewRepository_PicksSQLite(t *testing.T) {
	cfg := &config.Config{DatabaseURL: "sqlite:///" + filepath.Join(t.TempDir(), "p.db")}

	repo, err := NewRepository(cfg, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	_, ok := repo.(*SQLiteRepository)
	assert.True(t, ok)
	assert.NoError(t, repo.Ping(context.Background()))
}
