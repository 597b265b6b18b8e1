package executor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/headless-crawler/pkg/config"
	"github.com/Sriram-PR/headless-crawler/pkg/models"
	"github.com/Sriram-PR/headless-crawler/pkg/policy"
	"github.com/Sriram-PR/headless-crawler/pkg/render"
	"github.com/Sriram-PR/headless-crawler/pkg/render/rendertest"
	"github.com/Sriram-PR/headless-crawler/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newExecutor(site *rendertest.Site, hooks policy.Set) *Executor {
	log := testLogger()
	return New(site, hooks.Resolve(policy.Defaults(&config.CrawlConfig{}, nil, log)), log)
}

func requireTaskError(t *testing.T, err error, sentinel error) *TaskError {
	t.Helper()
	require.Error(t, err)
	var taskErr *TaskError
	require.True(t, errors.As(err, &taskErr), "expected *TaskError, got %T", err)
	assert.True(t, errors.Is(err, sentinel), "expected %v in %v", sentinel, err)
	return taskErr
}

func TestExecuteSuccess(t *testing.T) {
	site := rendertest.NewSite().Add("http://example.com/", rendertest.PageSpec{
		Title: "Home",
		Links: []string{"http://example.com/a", "", "http://example.com/b", "http://example.com/a"},
	})
	exec := newExecutor(site, policy.Set{})

	outcome, err := exec.Execute(context.Background(), models.NewSeedLink("http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/", outcome.URL)
	assert.Equal(t, policy.TitleContent{Title: "Home"}, outcome.Content)
	assert.Equal(t, []string{"http://example.com/a", "http://example.com/b"}, outcome.Links)
	assert.Equal(t, 0, site.Open(), "page must be closed")
}

func TestExecuteReportsFinalURL(t *testing.T) {
	site := rendertest.NewSite().Add("http://example.com/old", rendertest.PageSpec{
		Title:    "Moved",
		Redirect: "http://example.com/new",
	})
	exec := newExecutor(site, policy.Set{})

	outcome, err := exec.Execute(context.Background(), models.NewSeedLink("http://example.com/old"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/new", outcome.URL)
}

func TestExecuteFailures(t *testing.T) {
	boom := errors.New("boom")
	seed := models.NewSeedLink("http://example.com/")

	tests := []struct {
		name     string
		spec     rendertest.PageSpec
		hooks    policy.Set
		pageErr  error
		sentinel error
		category string
	}{
		{
			name:     "page acquisition",
			pageErr:  boom,
			sentinel: utils.ErrNavigation,
			category: "Navigation_PageAcquire",
		},
		{
			name:     "navigation",
			spec:     rendertest.PageSpec{NavErr: boom},
			sentinel: utils.ErrNavigation,
			category: "Navigation",
		},
		{
			name:     "ready waiter",
			spec:     rendertest.PageSpec{IdleErr: boom},
			sentinel: utils.ErrExtraction,
			category: "Extraction",
		},
		{
			name:     "link query",
			spec:     rendertest.PageSpec{LinksErr: boom},
			sentinel: utils.ErrExtraction,
			category: "Extraction",
		},
		{
			name: "extractor",
			spec: rendertest.PageSpec{Title: "x"},
			hooks: policy.Set{ExtractContent: func(context.Context, render.Page, string) (any, error) {
				return nil, boom
			}},
			sentinel: utils.ErrExtraction,
			category: "Extraction",
		},
		{
			name: "onPage hook",
			spec: rendertest.PageSpec{Title: "x"},
			hooks: policy.Set{OnPage: func(context.Context, render.Page, string) error {
				return boom
			}},
			sentinel: utils.ErrPolicy,
			category: "Policy",
		},
		{
			name: "extractor panic",
			spec: rendertest.PageSpec{Title: "x"},
			hooks: policy.Set{ExtractContent: func(context.Context, render.Page, string) (any, error) {
				panic("extractor exploded")
			}},
			sentinel: utils.ErrPanic,
			category: "Extraction_Panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := rendertest.NewSite().Add(seed.LinkURL, tt.spec)
			site.NewPageErr = tt.pageErr
			exec := newExecutor(site, tt.hooks)

			outcome, err := exec.Execute(context.Background(), seed)
			taskErr := requireTaskError(t, err, tt.sentinel)
			assert.Equal(t, seed.LinkURL, taskErr.Link.LinkURL)
			assert.Equal(t, tt.category, utils.CategorizeError(err))
			assert.Empty(t, outcome.URL)
			assert.Equal(t, 0, site.Open(), "page must be closed on failure")
		})
	}
}

func TestExecuteUnknownPageFailsNavigation(t *testing.T) {
	exec := newExecutor(rendertest.NewSite(), policy.Set{})
	_, err := exec.Execute(context.Background(), models.NewSeedLink("http://example.com/missing"))
	requireTaskError(t, err, utils.ErrNavigation)
}

func TestExecuteArmsWaiterBeforeNavigation(t *testing.T) {
	site := rendertest.NewSite().Add("http://example.com/", rendertest.PageSpec{Title: "x"})
	var order []string
	hooks := policy.Set{
		WaitFor: func(ctx context.Context, page render.Page, _ string) <-chan error {
			order = append(order, "arm:"+page.URL())
			return page.NetworkIdle(ctx)
		},
		OnPage: func(_ context.Context, page render.Page, _ string) error {
			order = append(order, "onPage")
			return nil
		},
	}
	exec := newExecutor(site, hooks)

	_, err := exec.Execute(context.Background(), models.NewSeedLink("http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"onPage", "arm:about:blank"}, order)
}

func TestExecuteOnPageSetsUserAgent(t *testing.T) {
	site := rendertest.NewSite().Add("http://example.com/", rendertest.PageSpec{EchoUserAgent: true})
	exec := newExecutor(site, policy.Set{OnPage: policy.UserAgentHook("agent-x")})

	outcome, err := exec.Execute(context.Background(), models.NewSeedLink("http://example.com/"))
	require.NoError(t, err)
	assert.Equal(t, policy.TitleContent{Title: "agent-x"}, outcome.Content)
}

func TestExecuteCancelledWhileNavigating(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	site := rendertest.NewSite().Add("http://example.com/", rendertest.PageSpec{Hold: hold})
	exec := newExecutor(site, policy.Set{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := exec.Execute(ctx, models.NewSeedLink("http://example.com/"))
	requireTaskError(t, err, utils.ErrNavigation)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, site.Open())
}

func TestExecuteNilWaiterChannel(t *testing.T) {
	site := rendertest.NewSite().Add("http://example.com/", rendertest.PageSpec{Title: "x"})
	exec := newExecutor(site, policy.Set{
		WaitFor: func(context.Context, render.Page, string) <-chan error { return nil },
	})
	_, err := exec.Execute(context.Background(), models.NewSeedLink("http://example.com/"))
	assert.NoError(t, err)
}

func TestTaskErrorMessage(t *testing.T) {
	link := models.NewSeedLink("http://example.com/").Child("http://example.com/a")
	err := &TaskError{Link: link, Err: utils.ErrNavigation}
	assert.Equal(t, "task http://example.com/a (depth 1): navigation failed", err.Error())
	assert.ErrorIs(t, err, utils.ErrNavigation)
}

func TestUniqueLinks(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, UniqueLinks([]string{"a", "", "b", "a", "c", "b", ""}))
	assert.Empty(t, UniqueLinks(nil))
}
