package product

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	redisSeqKey   = "products:seq"
	redisIndexKey = "products"
)

func redisProductKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// redisTxAttempts bounds how often WithTx reruns its function after a
// watched key changed before EXEC.
const redisTxAttempts = 3

// redisReader is the read side shared by *redis.Client and *redis.Tx.
type redisReader interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisRepo keeps each product in a hash and orders them through a sorted
// set scored by id. IDs come from INCR and are not reused after a rollback.
type RedisRepo struct {
	rdb *redis.Client
	// Set inside WithTx. Every product key read through tx is WATCHed and
	// writes are queued in pipe until EXEC.
	tx   *redis.Tx
	pipe redis.Pipeliner
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo { return &RedisRepo{rdb: rdb} }

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// WithTx runs fn with optimistic locking. When a product fn looked at is
// changed by another client before EXEC, the queued writes are dropped and
// fn runs again on fresh state.
func (r *RedisRepo) WithTx(ctx context.Context, fn TxFunc) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	for attempt := 0; attempt < redisTxAttempts; attempt++ {
		var execErr error
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			scoped := &RedisRepo{rdb: r.rdb, tx: tx, pipe: tx.TxPipeline()}
			if err := fn(ctx, scoped); err != nil {
				scoped.pipe.Discard()
				return err
			}
			if scoped.pipe.Len() == 0 {
				return nil
			}
			_, execErr = scoped.pipe.Exec(ctx)
			return nil
		})
		if err != nil {
			return err
		}
		if errors.Is(execErr, redis.TxFailedErr) {
			continue
		}
		if execErr != nil {
			return fmt.Errorf("exec redis tx: %w", execErr)
		}
		return nil
	}
	return fmt.Errorf("exec redis tx after %d attempts: %w", redisTxAttempts, redis.TxFailedErr)
}

func (r *RedisRepo) reader() redisReader {
	if r.tx != nil {
		return r.tx
	}
	return r.rdb
}

// watch adds key to the transaction's watch set. No-op outside WithTx.
func (r *RedisRepo) watch(ctx context.Context, key string) error {
	if r.tx == nil {
		return nil
	}
	return r.tx.Watch(ctx, key).Err()
}

func (r *RedisRepo) write(ctx context.Context, fn func(p redis.Pipeliner)) error {
	if r.pipe != nil {
		fn(r.pipe)
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(p)
		return nil
	})
	return err
}

func (r *RedisRepo) Persist(ctx context.Context, p *Product) error {
	id, err := r.reader().Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return fmt.Errorf("next product id: %w", err)
	}
	p.ID = id
	err = r.write(ctx, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, redisProductKey(id), "name", p.Name, "price", p.Price.String())
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(id), Member: id})
	})
	if err != nil {
		return fmt.Errorf("store product %d: %w", id, err)
	}
	return nil
}

func (r *RedisRepo) FindByID(ctx context.Context, id int64) (*Product, error) {
	key := redisProductKey(id)
	if err := r.watch(ctx, key); err != nil {
		return nil, fmt.Errorf("watch product %d: %w", id, err)
	}
	fields, err := r.reader().HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return productFromHash(id, fields)
}

func (r *RedisRepo) ListAll(ctx context.Context) ([]Product, error) {
	members, err := r.rdb.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}

	ids := make([]int64, 0, len(members))
	cmds := make([]*redis.MapStringStringCmd, 0, len(members))
	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, m := range members {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return fmt.Errorf("bad product id %q in index: %w", m, err)
			}
			ids = append(ids, id)
			cmds = append(cmds, pipe.HGetAll(ctx, redisProductKey(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]Product, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		// deleted between ZRANGE and HGETALL
		if len(fields) == 0 {
			continue
		}
		p, err := productFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// Update and DeleteByID check existence and write in one watched
// transaction, opening their own when called outside WithTx.
func (r *RedisRepo) Update(ctx context.Context, p *Product) error {
	if r.tx == nil {
		return r.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			return repo.Update(ctx, p)
		})
	}

	key := redisProductKey(p.ID)
	if err := r.watch(ctx, key); err != nil {
		return fmt.Errorf("watch product %d: %w", p.ID, err)
	}
	n, err := r.tx.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check product %d: %w", p.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.write(ctx, func(pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, "name", p.Name, "price", p.Price.String())
	})
}

func (r *RedisRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if r.tx == nil {
		var deleted bool
		err := r.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			var err error
			deleted, err = repo.DeleteByID(ctx, id)
			return err
		})
		return deleted, err
	}

	key := redisProductKey(id)
	if err := r.watch(ctx, key); err != nil {
		return false, fmt.Errorf("watch product %d: %w", id, err)
	}
	n, err := r.tx.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check product %d: %w", id, err)
	}
	if n == 0 {
		return false, nil
	}
	err = r.write(ctx, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, redisIndexKey, id)
	})
	return true, err
}

func productFromHash(id int64, fields map[string]string) (*Product, error) {
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, fmt.Errorf("parse price of product %d: %w", id, err)
	}
	return &Product{ID: id, Name: fields["name"], Price: price}, nil
}
