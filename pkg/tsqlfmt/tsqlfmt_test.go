package tsqlfmt_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/tsqlfmt/internal/testutil"
	"github.com/leapstack-labs/tsqlfmt/pkg/format"
	"github.com/leapstack-labs/tsqlfmt/pkg/token"
	"github.com/leapstack-labs/tsqlfmt/pkg/tree"
	"github.com/leapstack-labs/tsqlfmt/pkg/tsqlfmt"
)

func newFormatter(t *testing.T, opts ...tsqlfmt.Option) *tsqlfmt.Formatter {
	t.Helper()
	opts = append([]tsqlfmt.Option{tsqlfmt.WithLogger(testutil.NewTestLogger(t))}, opts...)
	f := tsqlfmt.New(opts...)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// ---------- Format ----------

func TestFormat(t *testing.T) {
	f := newFormatter(t)

	res := f.Format("select a,b from t where x=1")
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "SELECT a\n\t,b\nFROM t\nWHERE x = 1\n", res.FormattedSQL)
	assert.Nil(t, res.ErrorLine)

	require.NotNil(t, res.Statistics)
	assert.Equal(t, 1, res.Statistics.StatementCount)
	assert.Equal(t, 15, res.Statistics.TokenCount)
	assert.Equal(t, 4, res.Statistics.LinesFormatted)
}

func TestFormatWithOptions(t *testing.T) {
	f := newFormatter(t)

	opts := format.DefaultOptions()
	opts.KeywordCasing = format.CasingLower
	opts.ExpandCommaLists = false

	res := f.Format("SELECT a,b FROM t", opts)
	require.True(t, res.Success)
	assert.Equal(t, "select a, b\nfrom t\n", res.FormattedSQL)
}

func TestFormatFailsClosed(t *testing.T) {
	inputs := []string{
		"select * from",
		"select 1 select",
		"select 'unterminated",
		"foo bar",
		"select (a from t",
	}

	f := newFormatter(t)
	for _, sql := range inputs {
		t.Run(sql, func(t *testing.T) {
			res := f.Format(sql)
			assert.False(t, res.Success)
			assert.Equal(t, sql, res.FormattedSQL)
			assert.NotEmpty(t, res.ErrorMessage)
			require.NotNil(t, res.ErrorLine)
			require.NotNil(t, res.ErrorColumn)
			assert.Nil(t, res.Statistics)
		})
	}
}

func TestFormatMissingTable(t *testing.T) {
	res := newFormatter(t).Format("select * from")
	assert.False(t, res.Success)
	assert.Equal(t, "select * from", res.FormattedSQL)
	require.NotNil(t, res.ErrorLine)
	assert.Equal(t, 1, *res.ErrorLine)
}

func TestFormatEmpty(t *testing.T) {
	f := newFormatter(t)
	for _, sql := range []string{"", "   ", "\n\t\n"} {
		res := f.Format(sql)
		assert.True(t, res.Success)
		assert.Equal(t, sql, res.FormattedSQL)
		assert.Nil(t, res.Statistics)
	}
}

func TestFormatInvalidOptions(t *testing.T) {
	opts := format.DefaultOptions()
	opts.IndentUnit = ""

	res := newFormatter(t).Format("select 1", opts)
	assert.False(t, res.Success)
	assert.Equal(t, "select 1", res.FormattedSQL)
	assert.Contains(t, res.ErrorMessage, "indent_unit")
}

type panicFormatter struct{}

func (panicFormatter) Format(*tree.ParseTree, format.Options) string {
	panic("boom")
}

func TestFormatRecoversPanics(t *testing.T) {
	logger, logs := testutil.NewCapturingLogger(t)
	f := newFormatter(t, tsqlfmt.WithLogger(logger), tsqlfmt.WithTreeFormatter(panicFormatter{}))

	res := f.Format("select 1")
	assert.False(t, res.Success)
	assert.Equal(t, "select 1", res.FormattedSQL)
	assert.Equal(t, "formatting failed: boom", res.ErrorMessage)
	assert.Equal(t, int64(1), f.Stats().Failed)
	assert.Len(t, logs.Lines("level=ERROR", `msg="formatting failed"`, "panic=boom"), 1)
}

func TestFormatCustomStages(t *testing.T) {
	var tokenized, parsed atomic.Int32
	f := newFormatter(t,
		tsqlfmt.WithTokenizer(tsqlfmt.TokenizerFunc(func(sql string) []token.Token {
			tokenized.Add(1)
			return nil
		})),
		tsqlfmt.WithParser(tsqlfmt.ParserFunc(func(tokens []token.Token) (*tree.ParseTree, error) {
			parsed.Add(1)
			return nil, errors.New("no tokens")
		})),
	)

	res := f.Format("select 1")
	assert.False(t, res.Success)
	assert.Equal(t, "select 1", res.FormattedSQL)
	assert.Contains(t, res.ErrorMessage, "no tokens")
	assert.Equal(t, int32(1), tokenized.Load())
	assert.Equal(t, int32(1), parsed.Load())
}

func TestFormatIdempotent(t *testing.T) {
	f := newFormatter(t)
	inputs := []string{
		"select a,b from t where x=1",
		"with c as (select a from t) select * from c join d on c.a = d.a",
		"if exists (select 1 from t) begin update t set a = 1 end",
	}
	for _, sql := range inputs {
		first := f.Format(sql)
		require.True(t, first.Success, first.ErrorMessage)
		second := f.Format(first.FormattedSQL)
		require.True(t, second.Success, second.ErrorMessage)
		assert.Equal(t, first.FormattedSQL, second.FormattedSQL)
	}
}

func TestResultJSON(t *testing.T) {
	res := newFormatter(t).Format("select * from")
	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "select * from", decoded["formatted_sql"])
	assert.Equal(t, float64(1), decoded["error_line"])
	assert.NotContains(t, decoded, "statistics")
}

// ---------- Async ----------

func TestFormatAsync(t *testing.T) {
	f := newFormatter(t)

	res, err := f.FormatAsync(context.Background(), "select a,b from t where x=1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "SELECT a\n\t,b\nFROM t\nWHERE x = 1\n", res.FormattedSQL)

	res, err = f.FormatAsync(context.Background(), "select * from")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "select * from", res.FormattedSQL)
}

func TestFormatAsyncCancelledBeforeStart(t *testing.T) {
	f := newFormatter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FormatAsync(ctx, "select 1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), f.Stats().Cancelled)
	assert.Equal(t, int64(0), f.Stats().Active)
}

// blockingFormatter holds every call until release is closed.
type blockingFormatter struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingFormatter) Format(pt *tree.ParseTree, opts format.Options) string {
	b.started <- struct{}{}
	<-b.release
	return format.Format(pt, opts)
}

func TestFormatAsyncCancelledWhileWaiting(t *testing.T) {
	blocker := &blockingFormatter{started: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFormatter(t, tsqlfmt.WithConcurrency(1), tsqlfmt.WithTreeFormatter(blocker))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := f.FormatAsync(context.Background(), "select 1")
		assert.NoError(t, err)
		assert.True(t, res.Success)
	}()
	<-blocker.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.FormatAsync(ctx, "select 2")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(blocker.release)
	wg.Wait()

	stats := f.Stats()
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, int64(0), stats.Active)

	// The permit of the finished call is free again.
	blocker.started = make(chan struct{}, 1)
	res, err := f.FormatAsync(context.Background(), "select 3")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3\n", res.FormattedSQL)
}

// countingFormatter records how many calls run at the same time.
type countingFormatter struct {
	current atomic.Int32
	max     atomic.Int32
}

func (c *countingFormatter) Format(pt *tree.ParseTree, opts format.Options) string {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		m := c.max.Load()
		if n <= m || c.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return format.Format(pt, opts)
}

func TestFormatAsyncThrottling(t *testing.T) {
	const pool = 3
	counter := &countingFormatter{}
	f := newFormatter(t, tsqlfmt.WithConcurrency(pool), tsqlfmt.WithTreeFormatter(counter))
	require.Equal(t, pool, f.Concurrency())

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 4*pool; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.FormatAsync(context.Background(), "select a, b from t")
			if err == nil && res.Success {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4*pool), succeeded.Load())
	assert.LessOrEqual(t, counter.max.Load(), int32(pool))

	stats := f.Stats()
	assert.LessOrEqual(t, stats.Peak, int64(pool))
	assert.Equal(t, int64(4*pool), stats.Completed)
	assert.Equal(t, int64(0), stats.Active)
}

func TestDefaultConcurrency(t *testing.T) {
	f := newFormatter(t, tsqlfmt.WithConcurrency(0))
	assert.GreaterOrEqual(t, f.Concurrency(), 2)
	assert.Equal(t, 0, f.Concurrency()%2)
}

// ---------- Validate ----------

func TestValidate(t *testing.T) {
	f := newFormatter(t)

	res := f.Validate("select 1 select")
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, 1, res.Errors[0].Line)
	assert.Equal(t, 10, res.Errors[0].Column)
	assert.Equal(t, tree.SeverityError, res.Errors[0].Severity)

	res = f.Validate("select 1; select 2")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

// ---------- Obfuscate ----------

func TestObfuscate(t *testing.T) {
	f := newFormatter(t)

	got := f.Obfuscate("select * from t where name='secret'")
	assert.Equal(t, "SELECT *\nFROM t\nWHERE name = 'str1'\n", got)
	assert.NotContains(t, got, "secret")
}

func TestObfuscateIdentifiers(t *testing.T) {
	got := newFormatter(t).ObfuscateIdentifiers("select price from items where price = 99")
	assert.Equal(t, "SELECT id1\nFROM id2\nWHERE id1 = 1\n", got)
}

func TestObfuscateSyntaxErrors(t *testing.T) {
	got := newFormatter(t).Obfuscate("select 'secret', 42 from")
	assert.Equal(t, "select 'str1', 1 from", got)
}

func TestObfuscateFailure(t *testing.T) {
	f := newFormatter(t, tsqlfmt.WithTreeFormatter(panicFormatter{}))
	assert.Equal(t, "select 'secret'", f.Obfuscate("select 'secret'"))
	assert.Equal(t, "", f.Obfuscate(""))
}

// ---------- Close ----------

func TestClose(t *testing.T) {
	f := tsqlfmt.New()
	assert.False(t, f.Closed())
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.True(t, f.Closed())

	_, err := f.FormatAsync(context.Background(), "select 1")
	assert.ErrorIs(t, err, tsqlfmt.ErrClosed)

	assert.PanicsWithValue(t, tsqlfmt.ErrClosed, func() { f.Format("select 1") })
	assert.PanicsWithValue(t, tsqlfmt.ErrClosed, func() { f.Validate("select 1") })
	assert.PanicsWithValue(t, tsqlfmt.ErrClosed, func() { f.Obfuscate("select 1") })
}
