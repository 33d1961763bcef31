package query

import "context"

// Get is Fetch with the cached value asserted to T
func Get[T any](ctx context.Context, c *Client, key Key, fetch func(context.Context) (T, error), opts Options) (T, Result, error) {
	res, err := c.Fetch(ctx, key, erase(fetch), opts)
	v, _ := res.Data.(T)
	return v, res, err
}

// Snapshot is Query with the cached value asserted to T
func Snapshot[T any](ctx context.Context, c *Client, key Key, fetch func(context.Context) (T, error), opts Options) (T, Result) {
	res := c.Query(ctx, key, erase(fetch), opts)
	v, _ := res.Data.(T)
	return v, res
}

func erase[T any](fetch func(context.Context) (T, error)) FetchFunc {
	if fetch == nil {
		return nil
	}
	return func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
