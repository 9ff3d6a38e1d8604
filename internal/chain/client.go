// Package chain abstracts a JSON-RPC endpoint the way §4.1 specifies:
// current head, ranged log retrieval with topic/address filters, and
// read-only contract calls, with transparent retry on rate-limit
// responses. Built directly on go-ethereum's ethclient, the same client
// the rest of the ecosystem (aggkit, hermez-node) builds its indexers on.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rollupfed/indexer/internal/workererr"
)

// RetryPolicy controls the exponential backoff applied to rate-limited
// responses. Non-rate-limit errors are never retried; they surface to the
// caller immediately as a workererr.Fatal of kind "transport".
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the default from §4.1: 10 attempts, 1s base.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 10, BaseDelay: time.Second}

// Client wraps an ethclient.Client with the retry policy and the narrow
// set of operations the indexing pipeline needs.
type Client struct {
	rpcURL string
	eth    *ethclient.Client
	retry  RetryPolicy
	log    log.Logger
}

// Dial opens a JSON-RPC connection to rawurl.
func Dial(rawurl string) (*Client, error) {
	eth, err := ethclient.Dial(rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawurl, err)
	}
	return &Client{
		rpcURL: rawurl,
		eth:    eth,
		retry:  DefaultRetryPolicy,
		log:    log.New("component", "chain", "rpc", rawurl),
	}, nil
}

// Head returns the current head block number.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	var head uint64
	err := c.withRetry(ctx, "head", func() error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		head = n
		return nil
	})
	return head, err
}

// Logs fetches logs in [fromBlock, toBlock] matching any of addresses and
// topics. An empty topics slice matches any topic.
func (c *Client) Logs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    topics,
	}
	var logs []types.Log
	err := c.withRetry(ctx, "logs", func() error {
		l, err := c.eth.FilterLogs(ctx, q)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	return logs, err
}

// Call invokes a read-only contract method and unpacks its return values
// through each pointer in out, one per declared output, in order.
func (c *Client) Call(ctx context.Context, contract common.Address, method abi.Method, args []interface{}, out []interface{}) error {
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return fmt.Errorf("pack args for %s: %w", method.Name, err)
	}
	data := append(append([]byte{}, method.ID...), packed...)

	var ret []byte
	err = c.withRetry(ctx, method.Name, func() error {
		r, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
		if err != nil {
			return err
		}
		ret = r
		return nil
	})
	if err != nil {
		return err
	}
	vals, err := method.Outputs.Unpack(ret)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method.Name, err)
	}
	return assignOutputs(method.Name, vals, out)
}

// assignOutputs writes each unpacked return value through its caller-owned
// pointer in out. A plain copy() only overwrites the interface{} elements
// of out itself, never the values the caller's pointers refer to, so each
// decoded value must be set via reflection against *out[i].
func assignOutputs(method string, vals []interface{}, out []interface{}) error {
	if len(vals) < len(out) {
		return fmt.Errorf("unpack %s: got %d return values, need %d", method, len(vals), len(out))
	}
	for i, dst := range out {
		rv := reflect.ValueOf(dst)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return fmt.Errorf("unpack %s: out[%d] must be a non-nil pointer", method, i)
		}
		val := reflect.ValueOf(vals[i])
		elem := rv.Elem()
		switch {
		case val.Type().AssignableTo(elem.Type()):
			elem.Set(val)
		case val.Type().ConvertibleTo(elem.Type()):
			elem.Set(val.Convert(elem.Type()))
		default:
			return fmt.Errorf("unpack %s: cannot assign %s into %s for out[%d]", method, val.Type(), elem.Type(), i)
		}
	}
	return nil
}

// ToTopic left-pads an address with 12 zero bytes to a full 32-byte topic,
// as required when using an address as a topic filter (§4.1).
func ToTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := c.retry.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRateLimited(err) {
			return workererr.NewTransport(fmt.Errorf("%s: %w", op, err))
		}
		c.log.Warn("rate limited, backing off", "op", op, "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return workererr.NewTransport(ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return workererr.NewTransport(fmt.Errorf("%s: exhausted retries: %w", op, lastErr))
}

// isRateLimited classifies an error as a rate-limit signal when it is a
// network timeout, or when its message mentions HTTP 429, "rate limit" or
// "too many requests". JSON-RPC error codes are not inspected; a rate-limit
// response is recognised only through its message text.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}
