// Package mongo is a MongoDB ledger store. Each write touches one document,
// so multi-record mutations keep the documented partial-failure window.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-ledger/internal/domain"
	"github.com/dvloznov/finance-ledger/internal/ledger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
)

// Store implements ledger.Store on two collections.
type Store struct {
	client       *mongo.Client
	accounts     *mongo.Collection
	transactions *mongo.Collection
}

// Connect opens a client for uri, pings it and returns a Store on database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}

	return NewStore(client, database), nil
}

// NewStore wraps an existing client.
func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:       client,
		accounts:     db.Collection(accountsCollection),
		transactions: db.Collection(transactionsCollection),
	}
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("EnsureIndexes: accounts: %w", err)
	}

	_, err = s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "account", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("EnsureIndexes: transactions: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// CreateAccount implements ledger.AccountRepository.
func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	doc, err := newAccountDoc(acc)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	if _, err := s.accounts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

// GetAccount implements ledger.AccountRepository.
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var doc accountDoc
	err := s.accounts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return doc.toDomain()
}

// ListAccounts implements ledger.AccountRepository.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.accounts.Find(ctx, bson.M{"user": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ListAccounts: decode: %w", err)
	}

	accounts := make([]*domain.Account, 0, len(docs))
	for i := range docs {
		acc, err := docs[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// SaveAccount implements ledger.AccountRepository.
func (s *Store) SaveAccount(ctx context.Context, acc *domain.Account) error {
	doc, err := newAccountDoc(acc)
	if err != nil {
		return fmt.Errorf("SaveAccount: %w", err)
	}
	res, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": acc.ID}, doc)
	if err != nil {
		return fmt.Errorf("SaveAccount: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount implements ledger.AccountRepository.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.accounts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// CreateTransaction implements ledger.TransactionRepository.
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	doc, err := newTransactionDoc(tx)
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

// GetTransaction implements ledger.TransactionRepository.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var doc transactionDoc
	err := s.transactions.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return doc.toDomain()
}

// SaveTransaction implements ledger.TransactionRepository.
func (s *Store) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	doc, err := newTransactionDoc(tx)
	if err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	res, err := s.transactions.ReplaceOne(ctx, bson.M{"_id": tx.ID}, doc)
	if err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// DeleteTransaction implements ledger.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.transactions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// ListTransactions implements ledger.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	cur, err := s.transactions.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ListTransactions: decode: %w", err)
	}

	txs := make([]*domain.Transaction, 0, len(docs))
	for i := range docs {
		tx, err := docs[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// CountTransactions implements ledger.TransactionRepository.
func (s *Store) CountTransactions(ctx context.Context, accountID string) (int, error) {
	n, err := s.transactions.CountDocuments(ctx, bson.M{"account": accountID})
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return int(n), nil
}

func buildFilter(f domain.TransactionFilter) bson.M {
	q := bson.M{}
	if f.OwnerID != "" {
		q["user"] = f.OwnerID
	}
	if f.AccountID != "" {
		q["account"] = f.AccountID
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.From != nil || f.To != nil {
		date := bson.M{}
		if f.From != nil {
			date["$gte"] = *f.From
		}
		if f.To != nil {
			date["$lte"] = *f.To
		}
		q["date"] = date
	}
	return q
}

var _ ledger.Store = (*Store)(nil)
