package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"coffee_shop/internal/models"

	"github.com/shopspring/decimal"
)

// Memory implements the Storage interface in process memory.
// A single mutex serialises writers, which makes every purchase atomic. It backs the
// unit tests and local runs without PostgreSQL; state is lost on exit.
type Memory struct {
	mu        sync.RWMutex
	users     map[int64]models.User
	coffees   map[int64]models.Coffee
	purchases []models.Purchase
	revoked   map[string]*time.Time

	lastUserID     int64
	lastCoffeeID   int64
	lastPurchaseID int64
	now            func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[int64]models.User),
		coffees: make(map[int64]models.Coffee),
		revoked: make(map[string]*time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close is a no-op.
func (m *Memory) Close() {}

func (m *Memory) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username {
			return nil, ErrUsernameTaken
		}
	}
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, ErrEmailTaken
		}
	}

	m.lastUserID++
	created := *user
	created.ID = m.lastUserID
	created.CreatedAt = m.now()
	m.users[created.ID] = created

	return &created, nil
}

func (m *Memory) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	return m.findUser(ctx, func(u models.User) bool { return u.ID == userID })
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.findUser(ctx, func(u models.User) bool { return u.Username == username })
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, func(u models.User) bool { return u.Email == email })
}

func (m *Memory) findUser(ctx context.Context, match func(models.User) bool) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if match(user) {
			found := user
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *Memory) ListCoffees(ctx context.Context) ([]models.Coffee, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coffees := make([]models.Coffee, 0, len(m.coffees))
	for _, coffee := range m.coffees {
		coffees = append(coffees, coffee)
	}
	sort.Slice(coffees, func(i, j int) bool { return coffees[i].ID < coffees[j].ID })

	return coffees, nil
}

func (m *Memory) CreateCoffee(ctx context.Context, coffee *models.Coffee) (*models.Coffee, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}
	if err := checkCoffee(coffee); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastCoffeeID++
	created := *coffee
	created.ID = m.lastCoffeeID
	created.CreatedAt = m.now()
	created.UpdatedAt = created.CreatedAt
	m.coffees[created.ID] = created

	return &created, nil
}

func (m *Memory) UpdateCoffee(ctx context.Context, coffeeID int64, patch models.CoffeePatch) (*models.Coffee, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coffee, ok := m.coffees[coffeeID]
	if !ok {
		return nil, ErrCoffeeNotFound
	}

	if patch.Name != nil {
		coffee.Name = *patch.Name
	}
	if patch.Description != nil {
		coffee.Description = *patch.Description
	}
	if patch.Price != nil {
		coffee.Price = *patch.Price
	}
	if patch.Stock != nil {
		coffee.Stock = *patch.Stock
	}
	if err := checkCoffee(&coffee); err != nil {
		return nil, err
	}

	coffee.UpdatedAt = m.now()
	m.coffees[coffeeID] = coffee

	return &coffee, nil
}

// checkCoffee enforces the column constraints of the PostgreSQL schema.
func checkCoffee(coffee *models.Coffee) error {
	if coffee.Price.IsNegative() || coffee.Stock < 0 {
		return ErrNegativeValue
	}
	if !stockInRange(coffee.Stock) {
		return ErrValueOutOfRange
	}
	return nil
}

func (m *Memory) DeleteCoffee(ctx context.Context, coffeeID int64) error {
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.coffees[coffeeID]; !ok {
		return ErrCoffeeNotFound
	}
	for _, purchase := range m.purchases {
		if purchase.CoffeeID == coffeeID {
			return ErrCoffeeReferenced
		}
	}

	delete(m.coffees, coffeeID)
	return nil
}

// BuyCoffee checks and decrements stock and appends the purchase under one lock.
func (m *Memory) BuyCoffee(ctx context.Context, userID, coffeeID int64, quantity int) (*models.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coffee, ok := m.coffees[coffeeID]
	if !ok {
		return nil, ErrCoffeeNotFound
	}
	if coffee.Stock < quantity {
		return nil, ErrInsufficientStock
	}
	if _, ok := m.users[userID]; !ok {
		return nil, ErrUserNotFound
	}

	now := m.now()
	coffee.Stock -= quantity
	coffee.UpdatedAt = now
	m.coffees[coffeeID] = coffee

	m.lastPurchaseID++
	purchase := models.Purchase{
		ID:         m.lastPurchaseID,
		UserID:     userID,
		CoffeeID:   coffeeID,
		CoffeeName: coffee.Name,
		Quantity:   quantity,
		TotalPrice: coffee.Price.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt:  now,
	}
	m.purchases = append(m.purchases, purchase)

	return &purchase, nil
}

func (m *Memory) GetPurchases(ctx context.Context, userID int64) ([]models.Purchase, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	purchases := make([]models.Purchase, 0)
	for _, purchase := range m.purchases {
		if purchase.UserID == userID {
			purchases = append(purchases, purchase)
		}
	}
	return purchases, nil
}

func (m *Memory) RevokeToken(ctx context.Context, tokenID string, expiresAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, expiry := range m.revoked {
		if expiry != nil && expiry.Before(now) {
			delete(m.revoked, id)
		}
	}

	if _, ok := m.revoked[tokenID]; !ok {
		m.revoked[tokenID] = expiresAt
	}
	return nil
}

func (m *Memory) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, classify(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.revoked[tokenID]
	return ok, nil
}
