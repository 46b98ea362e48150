package repository

// Store groups the repositories that share one Querier, either the pool or an
// open transaction
type Store struct {
	Users        UserRepository
	AccessTokens AccessTokenRepository
	Categories   CategoryRepository
	Products     ProductRepository
	Orders       OrderRepository
}

// StoreFactory builds a Store bound to q
type StoreFactory func(q Querier) Store

// NewStore binds every repository to q
func NewStore(q Querier) Store {
	return Store{
		Users:        NewUserRepository(q),
		AccessTokens: NewAccessTokenRepository(q),
		Categories:   NewCategoryRepository(q),
		Products:     NewProductRepository(q),
		Orders:       NewOrderRepository(q),
	}
}
