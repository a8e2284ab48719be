package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"freshmart/internal/database"
	"freshmart/internal/domain"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, "../../migrations", zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func resetTables(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(`TRUNCATE order_items, orders, reservation_items, reservations, batches, products CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
}

func insertProduct(t *testing.T, basePrice int64) *domain.Product {
	t.Helper()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      "test product",
		BasePrice: basePrice,
	}
	_, err := testDB.Exec(
		`INSERT INTO products (id, name, base_price, in_stock, on_hand) VALUES ($1, $2, $3, FALSE, 0)`,
		product.ID, product.Name, product.BasePrice,
	)
	if err != nil {
		t.Fatalf("failed to insert product: %v", err)
	}
	return product
}

func insertBatch(t *testing.T, productID uuid.UUID, received int, salePrice int64, expiry *time.Time) *domain.Batch {
	t.Helper()
	batch := &domain.Batch{
		ID:         uuid.New(),
		ProductID:  productID,
		SupplierID: uuid.New(),
		Received:   received,
		SalePrice:  salePrice,
		ExpiryDate: expiry,
		IsActive:   true,
		ImportedAt: time.Now(),
	}
	_, err := testDB.Exec(
		`INSERT INTO batches (id, product_id, supplier_id, received, sale_price, expiry_date, is_active, imported_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)`,
		batch.ID, batch.ProductID, batch.SupplierID, batch.Received, batch.SalePrice, batch.ExpiryDate, batch.ImportedAt,
	)
	if err != nil {
		t.Fatalf("failed to insert batch: %v", err)
	}
	_, err = testDB.Exec(
		`UPDATE products SET on_hand = on_hand + $2, in_stock = TRUE WHERE id = $1`,
		productID, received,
	)
	if err != nil {
		t.Fatalf("failed to bump product stock: %v", err)
	}
	return batch
}

func TestReserveForCart_DrawsEarliestExpiringBatch(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 5, 1000, timePtr(now.Add(96*time.Hour)))
	soonest := insertBatch(t, product.ID, 5, 900, timePtr(now.Add(24*time.Hour)))

	reservation, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "s1"}, product, 3, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("ReserveForCart: %v", err)
	}

	if len(reservation.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(reservation.Items))
	}
	if reservation.Items[0].BatchID != soonest.ID {
		t.Errorf("drew from batch %s, want the soonest-expiring %s", reservation.Items[0].BatchID, soonest.ID)
	}
	if reservation.Items[0].UnitPrice != 900 {
		t.Errorf("locked price = %d, want the drawn batch's 900", reservation.Items[0].UnitPrice)
	}
}

func TestReserveForCart_ShortfallReportsAvailable(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)

	// First shopper holds 6 of 10.
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "x"}, product, 6, 15*time.Minute, now); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	// Second shopper asks for 5; only 4 remain reservable.
	_, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "y"}, product, 5, 15*time.Minute, now)
	var shortfall *InsufficientStockError
	if !errors.As(err, &shortfall) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if shortfall.Available != 4 || shortfall.Requested != 5 {
		t.Errorf("shortfall = %+v, want requested 5 available 4", shortfall)
	}

	// A request matching the shortfall succeeds.
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "y"}, product, 4, 15*time.Minute, now); err != nil {
		t.Errorf("reserve of reported availability should succeed, got %v", err)
	}
}

func TestReserveForCart_MergesIntoExistingCartLine(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)
	holder := domain.Holder{SessionKey: "merge"}

	first, err := repo.ReserveForCart(ctx, holder, product, 2, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	second, err := repo.ReserveForCart(ctx, holder, product, 3, 15*time.Minute, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}

	if second.ID != first.ID {
		t.Error("adds by the same holder should merge into one cart reservation")
	}
	if len(second.Items) != 1 || second.Items[0].Quantity != 5 {
		t.Errorf("items = %+v, want one line of 5", second.Items)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Error("a merge should refresh the cart TTL")
	}
}

func TestReserveForCart_LapsedHoldsDoNotCountAgainstAvailability(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 5, 1000, nil)

	// A hold that has lapsed but not yet been swept.
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "stale"}, product, 5, time.Minute, now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("stale reserve: %v", err)
	}

	// Availability must ignore it even before the sweeper runs.
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "fresh"}, product, 5, 15*time.Minute, now); err != nil {
		t.Errorf("lapsed hold blocked a new reservation: %v", err)
	}
}

func TestProperty_ConcurrentReservesNeverOversell(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	now := time.Now()

	const stock = 10
	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, stock, 1000, nil)

	// 20 shoppers race for 10 units, 2 each. Exactly 5 can win.
	const shoppers = 20
	var wg sync.WaitGroup
	granted := make(chan int, shoppers)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			holder := domain.Holder{SessionKey: uuid.New().String()}
			if _, err := repo.ReserveForCart(context.Background(), holder, product, 2, 15*time.Minute, now); err == nil {
				granted <- 2
			}
		}(i)
	}
	wg.Wait()
	close(granted)

	total := 0
	for q := range granted {
		total += q
	}
	if total > stock {
		t.Fatalf("granted %d units against %d in stock", total, stock)
	}
	if total != stock {
		t.Errorf("granted %d units, want all %d claimed", total, stock)
	}

	var held int
	err := testDB.QueryRow(
		`SELECT COALESCE(SUM(ri.quantity), 0) FROM reservation_items ri
		 JOIN reservations r ON r.id = ri.reservation_id
		 WHERE r.status = 'active'`,
	).Scan(&held)
	if err != nil {
		t.Fatalf("failed to sum holds: %v", err)
	}
	if held != total {
		t.Errorf("stored holds = %d, want %d", held, total)
	}
}

func TestPromoteToCheckout_MovesLinesAndExtendsTTL(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)
	holder := domain.Holder{SessionKey: "promote"}

	cart, err := repo.ReserveForCart(ctx, holder, product, 4, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	checkout, err := repo.PromoteToCheckout(ctx, holder, nil, 30*time.Minute, now)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}

	if checkout.Kind != domain.ReservationKindCheckout {
		t.Errorf("kind = %s, want checkout", checkout.Kind)
	}
	if len(checkout.Items) != 1 || checkout.Items[0].Quantity != 4 {
		t.Errorf("items = %+v, want the cart's line", checkout.Items)
	}
	if !checkout.ExpiresAt.After(cart.ExpiresAt) {
		t.Error("checkout TTL should exceed the cart TTL")
	}

	// The emptied cart no longer holds stock.
	drained, err := repo.FindByID(ctx, cart.ID)
	if err != nil {
		t.Fatalf("find cart: %v", err)
	}
	if drained.Status != domain.ReservationReleased {
		t.Errorf("cart status = %s, want released", drained.Status)
	}

	// The move must not double-count: the full remainder is reservable.
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "other"}, product, 6, 15*time.Minute, now); err != nil {
		t.Errorf("promotion double-counted held stock: %v", err)
	}
}

func TestPromoteToCheckout_NoActiveCart(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)

	_, err := repo.PromoteToCheckout(context.Background(), domain.Holder{SessionKey: "nobody"}, nil, 30*time.Minute, time.Now())
	if err != ErrNoActiveCart {
		t.Errorf("err = %v, want ErrNoActiveCart", err)
	}
}

func TestConfirmAndRelease_StateMachine(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)

	reservation, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "sm"}, product, 1, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	orderID := uuid.New()
	if err := repo.Confirm(ctx, reservation.ID, orderID, now); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := repo.Confirm(ctx, reservation.ID, orderID, now); err != ErrInvalidReservationState {
		t.Errorf("second confirm: err = %v, want ErrInvalidReservationState", err)
	}
	if err := repo.Release(ctx, reservation.ID, now); err != ErrAlreadyConfirmed {
		t.Errorf("release of confirmed: err = %v, want ErrAlreadyConfirmed", err)
	}

	confirmed, err := repo.FindByID(ctx, reservation.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if confirmed.Status != domain.ReservationConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.OrderID == nil || *confirmed.OrderID != orderID {
		t.Error("confirmation should link the order")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)

	reservation, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "rel"}, product, 1, 15*time.Minute, now)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := repo.Release(ctx, reservation.ID, now); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := repo.Release(ctx, reservation.ID, now); err != nil {
		t.Errorf("second release should be a no-op, got %v", err)
	}
}

func TestSweepExpired_IsIdempotent(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)

	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "a"}, product, 1, time.Minute, now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("lapsed reserve: %v", err)
	}
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: "b"}, product, 1, 15*time.Minute, now); err != nil {
		t.Fatalf("live reserve: %v", err)
	}

	swept, err := repo.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	// A second pass finds nothing left to do.
	swept, err = repo.SweepExpired(ctx, now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 0 {
		t.Errorf("second sweep swept = %d, want 0", swept)
	}
}

func TestMigrateHolder_MergesAnonymousCart(t *testing.T) {
	resetTables(t)
	repo := NewReservationRepository(testDB)
	ctx := context.Background()
	now := time.Now()

	product := insertProduct(t, 1000)
	insertBatch(t, product.ID, 10, 1000, nil)

	userID := uuid.New()
	sessionKey := "sess-migrate"

	// The user already has a cart from an earlier signed-in visit, and
	// a fresh anonymous cart from this one.
	if _, err := repo.ReserveForCart(ctx, domain.Holder{UserID: &userID}, product, 2, 15*time.Minute, now); err != nil {
		t.Fatalf("user reserve: %v", err)
	}
	if _, err := repo.ReserveForCart(ctx, domain.Holder{SessionKey: sessionKey}, product, 3, 15*time.Minute, now); err != nil {
		t.Fatalf("anonymous reserve: %v", err)
	}

	if err := repo.MigrateHolder(ctx, sessionKey, userID, now); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	kind := domain.ReservationKindCart
	carts, err := repo.ListByHolder(ctx, domain.Holder{UserID: &userID}, &kind, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(carts) != 1 {
		t.Fatalf("carts = %d, want the merged single cart", len(carts))
	}
	if len(carts[0].Items) != 1 || carts[0].Items[0].Quantity != 5 {
		t.Errorf("merged cart items = %+v, want one line of 5", carts[0].Items)
	}

	// Nothing remains under the session identity.
	orphans, err := repo.ListByHolder(ctx, domain.Holder{SessionKey: sessionKey}, nil, now)
	if err != nil {
		t.Fatalf("list orphans: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("session still owns %d reservations after migration", len(orphans))
	}
}

func timePtr(t time.Time) *time.Time { return &t }
