package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"

	"github.com/adhira/adhira/internal/database"
	"github.com/adhira/adhira/internal/model"
)

const selectUserWithProfile = `
	SELECT u.id, u.full_name, u.email, u.mobile_number, u.password, u.role, u.token,
	       u.created_at, u.updated_at,
	       c.id, c.address,
	       s.id, s.shop_name, s.shop_description, s.business_address
	FROM users u
	LEFT JOIN customers c ON c.user_id = u.id
	LEFT JOIN sellers s ON s.user_id = u.id`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// 全クエリは一時的なドライバエラーに対してRetryPolicyで1回だけ再試行される。
type PostgresUserRepo struct {
	db    *sql.DB
	retry database.RetryPolicy
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB, retry database.RetryPolicy) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, retry: retry}
}

// FindByEmail はメールアドレスでユーザーをプロフィール付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.UserWithProfile, error) {
	var user *model.UserWithProfile
	err := r.retry.Do(ctx, "find_user_by_email", func(ctx context.Context) error {
		var err error
		user, err = scanUserWithProfile(r.db.QueryRowContext(ctx, selectUserWithProfile+` WHERE u.email = $1`, email))
		return err
	})
	if err != nil {
		return nil, dbError("USER_FIND_FAILED", "find user by email", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーをプロフィール付きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.UserWithProfile, error) {
	var user *model.UserWithProfile
	err := r.retry.Do(ctx, "find_user_by_id", func(ctx context.Context) error {
		var err error
		user, err = scanUserWithProfile(r.db.QueryRowContext(ctx, selectUserWithProfile+` WHERE u.id = $1`, id))
		return err
	})
	if err != nil {
		return nil, dbError("USER_FIND_FAILED", "find user by id", err, "user_id", id)
	}
	return user, nil
}

// EmailExists はメールアドレスが登録済みかを返す。
func (r *PostgresUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.retry.Do(ctx, "email_exists", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
			email,
		).Scan(&exists)
	})
	if err != nil {
		return false, dbError("USER_FIND_FAILED", "check email exists", err)
	}
	return exists, nil
}

// CreateCustomer はcustomerロールのユーザーとcustomer行を同一トランザクションで作成する。
// 途中で失敗した場合はどちらの行も残らない。
func (r *PostgresUserRepo) CreateCustomer(ctx context.Context, user *model.User, customer *model.Customer) error {
	user.Role = model.RoleCustomer
	customer.UserID = user.ID
	stampUser(user)

	err := r.retry.Do(ctx, "create_customer", func(ctx context.Context) error {
		return r.withTx(ctx, func(tx *sql.Tx) error {
			if err := insertUser(ctx, tx, user); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO customers (id, user_id, address, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				customer.ID, customer.UserID, customer.Address, user.CreatedAt, user.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert customer: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return createError(err, user)
	}
	return nil
}

// CreateSeller はsellerロールのユーザーとseller行を同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateSeller(ctx context.Context, user *model.User, seller *model.Seller) error {
	user.Role = model.RoleSeller
	seller.UserID = user.ID
	stampUser(user)

	err := r.retry.Do(ctx, "create_seller", func(ctx context.Context) error {
		return r.withTx(ctx, func(tx *sql.Tx) error {
			if err := insertUser(ctx, tx, user); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO sellers (id, user_id, shop_name, shop_description, business_address, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				seller.ID, seller.UserID, seller.ShopName, seller.ShopDescription, seller.BusinessAddress,
				user.CreatedAt, user.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert seller: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return createError(err, user)
	}
	return nil
}

// UpdateToken は最後に発行したトークンを上書き保存する。
func (r *PostgresUserRepo) UpdateToken(ctx context.Context, userID, token string) error {
	var affected int64
	err := r.retry.Do(ctx, "update_token", func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`UPDATE users SET token = $2, updated_at = now() WHERE id = $1`,
			userID, token,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return dbError("USER_UPDATE_FAILED", "update token", err, "user_id", userID)
	}
	if affected == 0 {
		return oops.In("database").Code("USER_NOT_FOUND").With("user_id", userID).Wrap(model.ErrUserNotFound)
	}
	return nil
}

// Count は登録ユーザー数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.retry.Do(ctx, "count_users", func(ctx context.Context) error {
		return r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count)
	})
	if err != nil {
		return 0, dbError("USER_COUNT_FAILED", "count users", err)
	}
	return count, nil
}

// withTx はfnをトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
func (r *PostgresUserRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertUser(ctx context.Context, tx *sql.Tx, user *model.User) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, full_name, email, mobile_number, password, role, token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.FullName, user.Email, user.MobileNumber, user.PasswordHash,
		string(user.Role), nullString(user.Token), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func stampUser(user *model.User) {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserWithProfile(row rowScanner) (*model.UserWithProfile, error) {
	var (
		u                            model.UserWithProfile
		role                         string
		token                        sql.NullString
		customerID, address          sql.NullString
		sellerID, shopName, shopDesc sql.NullString
		businessAddress              sql.NullString
	)

	err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.MobileNumber, &u.PasswordHash, &role, &token,
		&u.CreatedAt, &u.UpdatedAt,
		&customerID, &address,
		&sellerID, &shopName, &shopDesc, &businessAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	u.Token = token.String
	if customerID.Valid {
		u.Customer = &model.Customer{
			ID:      customerID.String,
			UserID:  u.ID,
			Address: address.String,
		}
	}
	if sellerID.Valid {
		u.Seller = &model.Seller{
			ID:              sellerID.String,
			UserID:          u.ID,
			ShopName:        shopName.String,
			ShopDescription: shopDesc.String,
			BusinessAddress: businessAddress.String,
		}
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// dbError はドライバエラーをdatabaseドメインのoopsエラーでラップする。
func dbError(code, operation string, err error, kv ...any) error {
	return oops.In("database").
		Code(code).
		With("operation", operation).
		With(kv...).
		Wrap(err)
}

// createError はユーザー作成時のエラーを分類する。
// 一意制約違反はmodel.ErrConstraintViolationとして呼び出し元が判別できるようにする。
func createError(err error, user *model.User) error {
	if database.IsUniqueViolation(err) {
		return oops.In("database").
			Code("USER_CONSTRAINT_VIOLATION").
			With("role", string(user.Role)).
			Wrap(fmt.Errorf("%w: %w", model.ErrConstraintViolation, err))
	}
	return dbError("USER_CREATE_FAILED", "create "+string(user.Role), err, "role", string(user.Role))
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
