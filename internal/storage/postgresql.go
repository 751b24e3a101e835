package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/logger"
	"coffee_shop/internal/storage/migrations"

	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

const (
	userColumns   = `id, username, email, password_hash, is_admin, created_at`
	coffeeColumns = `id, name, description, price, stock, created_at, updated_at`

	createUserQuery        = `INSERT INTO content.users (username, email, password_hash, is_admin) VALUES ($1, $2, $3, $4) RETURNING id, created_at;`
	getUserByIDQuery       = `SELECT ` + userColumns + ` FROM content.users WHERE id = $1;`
	getUserByUsernameQuery = `SELECT ` + userColumns + ` FROM content.users WHERE username = $1;`
	getUserByEmailQuery    = `SELECT ` + userColumns + ` FROM content.users WHERE email = $1;`

	listCoffeesQuery  = `SELECT ` + coffeeColumns + ` FROM content.coffees ORDER BY id;`
	createCoffeeQuery = `INSERT INTO content.coffees (name, description, price, stock) VALUES ($1, $2, $3, $4) RETURNING ` + coffeeColumns + `;`
	updateCoffeeQuery = `UPDATE content.coffees SET name = COALESCE($2, name), description = COALESCE($3, description), price = COALESCE($4, price), stock = COALESCE($5, stock), updated_at = NOW() WHERE id = $1 RETURNING ` + coffeeColumns + `;`
	deleteCoffeeQuery = `DELETE FROM content.coffees WHERE id = $1;`

	setLockTimeoutQuery = `SELECT set_config('lock_timeout', $1, true);`
	lockCoffeeQuery     = `SELECT id, name, price, stock FROM content.coffees WHERE id = $1 FOR UPDATE;`
	decrementStockQuery = `UPDATE content.coffees SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1;`
	insertPurchaseQuery = `INSERT INTO content.purchases (user_id, coffee_id, coffee_name, quantity, total_price) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at;`
	getPurchasesQuery   = `SELECT id, user_id, coffee_id, coffee_name, quantity, total_price, created_at FROM content.purchases WHERE user_id = $1 ORDER BY created_at, id;`

	purgeRevokedTokensQuery = `DELETE FROM content.revoked_tokens WHERE expires_at < NOW();`
	revokeTokenQuery        = `INSERT INTO content.revoked_tokens (token_id, expires_at) VALUES ($1, $2) ON CONFLICT (token_id) DO NOTHING;`
	isTokenRevokedQuery     = `SELECT EXISTS (SELECT 1 FROM content.revoked_tokens WHERE token_id = $1);`
)

// PostgreSQL implements the Storage interface using a PostgreSQL database.
type PostgreSQL struct {
	db          *sqlx.DB       // Connection pool to the database.
	log         *logger.Logger // Logger for recording events and errors.
	lockTimeout time.Duration  // Upper bound on waiting for a row lock inside a purchase.
}

// NewPostgreSQL creates a new PostgreSQL instance with the provided connection string and logger.
// It opens the connection and pings the database to ensure connectivity.
func NewPostgreSQL(configDBString string, lockTimeout time.Duration, l *logger.Logger) (*PostgreSQL, error) {
	db, err := sqlx.Open("pgx", configDBString)
	if err != nil {
		l.Sugar().Errorf("Failed to open a database: %s", err)
		return nil, err
	}

	const defaultTimeout = 10 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		l.Sugar().Errorf("Database ping failed: %s", err)
		db.Close()
		return nil, err
	}

	return newPostgreSQL(db, lockTimeout, l), nil
}

func newPostgreSQL(db *sqlx.DB, lockTimeout time.Duration, l *logger.Logger) *PostgreSQL {
	return &PostgreSQL{db: db, log: l, lockTimeout: lockTimeout}
}

// Close closes the database connection if it is open.
func (postgresql *PostgreSQL) Close() {
	if postgresql.db != nil {
		postgresql.db.Close()
	}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = goose.UpContext

// Migrate applies the embedded schema migrations.
func (postgresql *PostgreSQL) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, postgresql.db.DB, "."); err != nil {
		postgresql.log.Sugar().Errorf("Failed to apply migrations: %s", err)
		return err
	}
	return nil
}

// CreateUser inserts a user whose password has already been hashed.
// Unique violations on username or email are reported as ErrUsernameTaken and ErrEmailTaken.
func (postgresql *PostgreSQL) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	err := postgresql.db.QueryRowxContext(ctx, createUserQuery, user.Username, user.Email, user.PasswordHash, user.IsAdmin).
		Scan(&user.ID, &user.CreatedAt)
	if constraint, ok := constraintViolation(err, pgerrcode.UniqueViolation); ok {
		if constraint == "users_email_key" {
			return nil, ErrEmailTaken
		}
		return nil, ErrUsernameTaken
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createUserQuery: %s", err)
		return nil, classify(errors.Wrap(err, "create user"))
	}

	return user, nil
}

// GetUserByID returns the user with the given id or ErrUserNotFound.
func (postgresql *PostgreSQL) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	return postgresql.getUser(ctx, getUserByIDQuery, userID)
}

// GetUserByUsername returns the user with the given username or ErrUserNotFound.
func (postgresql *PostgreSQL) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return postgresql.getUser(ctx, getUserByUsernameQuery, username)
}

// GetUserByEmail returns the user with the given email or ErrUserNotFound.
func (postgresql *PostgreSQL) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return postgresql.getUser(ctx, getUserByEmailQuery, email)
}

func (postgresql *PostgreSQL) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := postgresql.db.GetContext(ctx, user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to load user: %s", err)
		return nil, classify(errors.Wrap(err, "get user"))
	}

	return user, nil
}

// ListCoffees returns the whole catalog ordered by id.
func (postgresql *PostgreSQL) ListCoffees(ctx context.Context) ([]models.Coffee, error) {
	const initialCatalogCapacity = 10
	coffees := make([]models.Coffee, 0, initialCatalogCapacity)

	if err := postgresql.db.SelectContext(ctx, &coffees, listCoffeesQuery); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query listCoffeesQuery: %s", err)
		return nil, classify(errors.Wrap(err, "list coffees"))
	}

	return coffees, nil
}

// CreateCoffee inserts a new catalog item and returns it as stored.
func (postgresql *PostgreSQL) CreateCoffee(ctx context.Context, coffee *models.Coffee) (*models.Coffee, error) {
	if !stockInRange(coffee.Stock) {
		return nil, ErrValueOutOfRange
	}

	created := &models.Coffee{}
	err := postgresql.db.GetContext(ctx, created, createCoffeeQuery, coffee.Name, coffee.Description, coffee.Price, coffee.Stock)
	if _, ok := constraintViolation(err, pgerrcode.CheckViolation); ok {
		return nil, ErrNegativeValue
	}
	if _, ok := constraintViolation(err, pgerrcode.NumericValueOutOfRange); ok {
		return nil, ErrValueOutOfRange
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query createCoffeeQuery: %s", err)
		return nil, classify(errors.Wrap(err, "create coffee"))
	}

	return created, nil
}

// UpdateCoffee applies the non-nil fields of patch and returns the updated item.
func (postgresql *PostgreSQL) UpdateCoffee(ctx context.Context, coffeeID int64, patch models.CoffeePatch) (*models.Coffee, error) {
	var (
		name        sql.NullString
		description sql.NullString
		price       decimal.NullDecimal
		stock       sql.NullInt64
	)
	if patch.Name != nil {
		name = sql.NullString{String: *patch.Name, Valid: true}
	}
	if patch.Description != nil {
		description = sql.NullString{String: *patch.Description, Valid: true}
	}
	if patch.Price != nil {
		price = decimal.NewNullDecimal(*patch.Price)
	}
	if patch.Stock != nil {
		if !stockInRange(*patch.Stock) {
			return nil, ErrValueOutOfRange
		}
		stock = sql.NullInt64{Int64: int64(*patch.Stock), Valid: true}
	}

	updated := &models.Coffee{}
	err := postgresql.db.GetContext(ctx, updated, updateCoffeeQuery, coffeeID, name, description, price, stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCoffeeNotFound
	}
	if _, ok := constraintViolation(err, pgerrcode.CheckViolation); ok {
		return nil, ErrNegativeValue
	}
	if _, ok := constraintViolation(err, pgerrcode.NumericValueOutOfRange); ok {
		return nil, ErrValueOutOfRange
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query updateCoffeeQuery: %s", err)
		return nil, classify(errors.Wrap(err, "update coffee"))
	}

	return updated, nil
}

// DeleteCoffee removes a catalog item. Items referenced by purchases cannot be deleted.
func (postgresql *PostgreSQL) DeleteCoffee(ctx context.Context, coffeeID int64) error {
	result, err := postgresql.db.ExecContext(ctx, deleteCoffeeQuery, coffeeID)
	if _, ok := constraintViolation(err, pgerrcode.ForeignKeyViolation); ok {
		return ErrCoffeeReferenced
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query deleteCoffeeQuery: %s", err)
		return classify(errors.Wrap(err, "delete coffee"))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in deleteCoffeeQuery: %s", err)
		return errors.Wrap(err, "delete coffee")
	}
	if rows == 0 {
		return ErrCoffeeNotFound
	}

	return nil
}

// BuyCoffee processes the purchase of quantity units of a coffee by a user.
// Within one transaction it locks the coffee row, checks the stock, decrements it and
// records the purchase with the price captured at this moment. Any failure rolls back
// both writes.
func (postgresql *PostgreSQL) BuyCoffee(ctx context.Context, userID, coffeeID int64, quantity int) (*models.Purchase, error) {
	tx, err := postgresql.db.BeginTxx(ctx, nil)
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to begin purchase transaction: %s", err)
		return nil, classify(errors.Wrap(err, "begin purchase"))
	}
	defer tx.Rollback()

	if err := postgresql.setLockTimeout(ctx, tx); err != nil {
		return nil, err
	}

	coffee, err := postgresql.lockCoffee(ctx, tx, coffeeID)
	if err != nil {
		return nil, err
	}

	if coffee.Stock < quantity {
		return nil, ErrInsufficientStock
	}

	if err := postgresql.decrementStock(ctx, tx, coffeeID, quantity); err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		UserID:     userID,
		CoffeeID:   coffeeID,
		CoffeeName: coffee.Name,
		Quantity:   quantity,
		TotalPrice: coffee.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
	err = tx.QueryRowxContext(ctx, insertPurchaseQuery, userID, coffeeID, purchase.CoffeeName, quantity, purchase.TotalPrice).
		Scan(&purchase.ID, &purchase.CreatedAt)
	if constraint, ok := constraintViolation(err, pgerrcode.ForeignKeyViolation); ok && constraint == "purchases_user_id_fkey" {
		return nil, ErrUserNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query insertPurchaseQuery: %s", err)
		return nil, classify(errors.Wrap(err, "insert purchase"))
	}

	if err = tx.Commit(); err != nil {
		postgresql.log.Sugar().Errorf("Failed to commit purchase transaction: %s", err)
		return nil, classify(errors.Wrap(err, "commit purchase"))
	}

	return purchase, nil
}

// setLockTimeout bounds how long the transaction waits for row locks.
func (postgresql *PostgreSQL) setLockTimeout(ctx context.Context, tx *sqlx.Tx) error {
	if postgresql.lockTimeout <= 0 {
		return nil
	}

	timeout := fmt.Sprintf("%dms", postgresql.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, setLockTimeoutQuery, timeout); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query setLockTimeoutQuery: %s", err)
		return classify(errors.Wrap(err, "set lock timeout"))
	}
	return nil
}

// lockCoffee reads the coffee row and holds its lock until the transaction ends.
func (postgresql *PostgreSQL) lockCoffee(ctx context.Context, tx *sqlx.Tx, coffeeID int64) (*models.Coffee, error) {
	coffee := &models.Coffee{}
	err := tx.GetContext(ctx, coffee, lockCoffeeQuery, coffeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCoffeeNotFound
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query lockCoffeeQuery: %s", err)
		return nil, classify(errors.Wrap(err, "lock coffee"))
	}

	return coffee, nil
}

// decrementStock takes quantity units off the stock. The conditional update refuses to
// go below zero even if the row lock were bypassed.
func (postgresql *PostgreSQL) decrementStock(ctx context.Context, tx *sqlx.Tx, coffeeID int64, quantity int) error {
	result, err := tx.ExecContext(ctx, decrementStockQuery, quantity, coffeeID)
	if constraint, ok := constraintViolation(err, pgerrcode.CheckViolation); ok && constraint == "coffees_stock_check" {
		return ErrInsufficientStock
	}
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query decrementStockQuery: %s", err)
		return classify(errors.Wrap(err, "decrement stock"))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute RowsAffected in decrementStockQuery: %s", err)
		return errors.Wrap(err, "decrement stock")
	}
	if rows == 0 {
		return ErrInsufficientStock
	}

	return nil
}

// GetPurchases returns the purchase history of a user, oldest first.
func (postgresql *PostgreSQL) GetPurchases(ctx context.Context, userID int64) ([]models.Purchase, error) {
	const initialHistoryCapacity = 10
	purchases := make([]models.Purchase, 0, initialHistoryCapacity)

	if err := postgresql.db.SelectContext(ctx, &purchases, getPurchasesQuery, userID); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query getPurchasesQuery: %s", err)
		return nil, classify(errors.Wrap(err, "get purchases"))
	}

	return purchases, nil
}

// RevokeToken records a token id as revoked. Revoking twice is a no-op.
// Entries of tokens that have already expired are purged on the way, since an expired
// token is rejected without consulting the list.
func (postgresql *PostgreSQL) RevokeToken(ctx context.Context, tokenID string, expiresAt *time.Time) error {
	if _, err := postgresql.db.ExecContext(ctx, purgeRevokedTokensQuery); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query purgeRevokedTokensQuery: %s", err)
		return classify(errors.Wrap(err, "purge revoked tokens"))
	}
	if _, err := postgresql.db.ExecContext(ctx, revokeTokenQuery, tokenID, expiresAt); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query revokeTokenQuery: %s", err)
		return classify(errors.Wrap(err, "revoke token"))
	}
	return nil
}

// IsTokenRevoked reports whether the token id has been revoked.
func (postgresql *PostgreSQL) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	if err := postgresql.db.GetContext(ctx, &revoked, isTokenRevokedQuery, tokenID); err != nil {
		postgresql.log.Sugar().Errorf("Failed to execute a query isTokenRevokedQuery: %s", err)
		return false, classify(errors.Wrap(err, "check token revocation"))
	}
	return revoked, nil
}
