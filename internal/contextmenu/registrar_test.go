package contextmenu

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
	"go.uber.org/mock/gomock"

	"github.com/metroplatform/metro-host/internal/bus"
	busmocks "github.com/metroplatform/metro-host/internal/bus/mocks"
	"github.com/metroplatform/metro-host/internal/storage"
	storagemocks "github.com/metroplatform/metro-host/internal/storage/mocks"
)

const waitTimeout = 2 * time.Second

func testButton(source string) Button {
	return Button{
		Title:        "Save to Metro",
		Type:         "selection",
		FunctionName: "saveSelection",
		Contexts:     []string{"selection"},
		Source:       source,
	}
}

func newPipe(t *testing.T) (*bus.Endpoint, *bus.Endpoint) {
	t.Helper()
	host, background := bus.NewPipe()
	t.Cleanup(func() {
		_ = host.Close()
		<-background.Done()
	})
	return host, background
}

// acceptCreates answers every contextMenu-create with accept and counts them.
func acceptCreates(background *bus.Endpoint, accept bool, count *atomic.Int32) {
	background.Subscribe(bus.MethodIs(bus.MethodContextMenuCreate), func(_ context.Context, _ bus.Message) (any, bool) {
		count.Add(1)
		return accept, true
	})
}

func TestButton_Message(t *testing.T) {
	t.Parallel()

	button := testButton("reddit")
	button.Extra = map[string]any{"icon": "metro.png", "datasource": "spoofed"}

	msg := button.message()
	assert.Equal(t, bus.MethodContextMenuCreate, msg.Method())
	assert.Equal(t, "reddit", msg["datasource"])
	assert.Equal(t, "selection", msg["type"])
	assert.Equal(t, "saveSelection", msg["functionName"])
	assert.Equal(t, "Save to Metro", msg["title"])
	assert.Equal(t, "metro.png", msg["icon"])
}

func TestRegistrar_CreatesOnceAndPersists(t *testing.T) {
	t.Parallel()
	host, background := newPipe(t)

	var creates atomic.Int32
	acceptCreates(background, true, &creates)

	local := storage.NewMemoryStore()
	r := NewRegistrar(host, local)
	defer r.Close()

	ctx := context.Background()
	created, err := r.Register(ctx, testButton("reddit"), func(context.Context, ContextInfo) any { return nil })
	require.NoError(t, err)
	assert.True(t, created)

	state, err := r.Registered(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"reddit"}, state)

	created, err = r.Register(ctx, testButton("reddit"), func(context.Context, ContextInfo) any { return nil })
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int32(1), creates.Load())

	var persisted []string
	require.NoError(t, storage.GetJSON(ctx, local, ButtonStateKey, &persisted))
	assert.Equal(t, []string{"reddit"}, persisted)
}

func TestRegistrar_ExistingStateSkipsCreate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockBus := busmocks.NewMockBus(ctrl)
	mockBus.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Return(func() {})

	local := storage.NewMemoryStore()
	require.NoError(t, storage.SetJSON(context.Background(), local, ButtonStateKey, []string{"twitter", "reddit"}))

	r := NewRegistrar(mockBus, local)
	created, err := r.Register(context.Background(), testButton("reddit"), nil)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestRegistrar_FailuresAreNotPersisted(t *testing.T) {
	t.Parallel()

	transportErr := errors.New("port disconnected")

	tests := []struct {
		name    string
		request func(context.Context, bus.Message, bus.ReplyFunc) error
		wantErr error
	}{
		{
			name: "background replies false",
			request: func(_ context.Context, _ bus.Message, onReply bus.ReplyFunc) error {
				go onReply(bus.Reply{Payload: json.RawMessage("false")})
				return nil
			},
			wantErr: ErrRejected,
		},
		{
			name: "background replies with a non-boolean",
			request: func(_ context.Context, _ bus.Message, onReply bus.ReplyFunc) error {
				go onReply(bus.Reply{Payload: json.RawMessage(`"ok"`)})
				return nil
			},
			wantErr: ErrRejected,
		},
		{
			name: "nobody answers",
			request: func(_ context.Context, _ bus.Message, onReply bus.ReplyFunc) error {
				go onReply(bus.Reply{Err: bus.ErrNoResponse})
				return nil
			},
			wantErr: bus.ErrNoResponse,
		},
		{
			name: "send fails",
			request: func(context.Context, bus.Message, bus.ReplyFunc) error {
				return transportErr
			},
			wantErr: transportErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			mockBus := busmocks.NewMockBus(ctrl)
			mockBus.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Return(func() {})
			mockBus.EXPECT().Request(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(tt.request)

			r := NewRegistrar(mockBus, storage.NewMemoryStore())
			created, err := r.Register(context.Background(), testButton("reddit"), nil)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, created)

			state, err := r.Registered(context.Background())
			require.NoError(t, err)
			assert.Empty(t, state)
		})
	}
}

func TestRegistrar_RejectsButtonWithoutSource(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockBus := busmocks.NewMockBus(ctrl)
	mockBus.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Return(func() {})

	r := NewRegistrar(mockBus, storage.NewMemoryStore())
	_, err := r.Register(context.Background(), testButton(""), nil)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestRegistrar_ConcurrentRegistrationsCreateOnce(t *testing.T) {
	t.Parallel()
	host, background := newPipe(t)

	release := make(chan struct{})
	var creates atomic.Int32
	background.Subscribe(bus.MethodIs(bus.MethodContextMenuCreate), func(_ context.Context, _ bus.Message) (any, bool) {
		creates.Add(1)
		<-release
		return true, true
	})

	r := NewRegistrar(host, storage.NewMemoryStore())
	defer r.Close()

	const callers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		started sync.WaitGroup
	)
	started.Add(callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			created, err := r.Register(context.Background(), testButton("reddit"), nil)
			assert.NoError(t, err)
			if created {
				wins.Add(1)
			}
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), creates.Load())
	assert.Equal(t, int32(1), wins.Load())

	state, err := r.Registered(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"reddit"}, state)
}

func TestRegistrar_DispatchesMenuClicks(t *testing.T) {
	t.Parallel()
	host, background := newPipe(t)

	var creates atomic.Int32
	acceptCreates(background, true, &creates)

	r := NewRegistrar(host, storage.NewMemoryStore())
	defer r.Close()

	_, err := r.Register(context.Background(), testButton("reddit"), func(_ context.Context, info ContextInfo) any {
		return map[string]any{"saved": info["selectionText"]}
	})
	require.NoError(t, err)

	click := func(functionName string) bus.Reply {
		replies := make(chan bus.Reply, 1)
		require.NoError(t, background.Request(context.Background(), bus.Message{
			"type":         "selection",
			"functionName": functionName,
			"contextInfo":  map[string]any{"selectionText": "hello"},
		}, func(reply bus.Reply) { replies <- reply }))
		select {
		case reply := <-replies:
			return reply
		case <-time.After(waitTimeout):
			t.Fatal("no reply to menu click")
			return bus.Reply{}
		}
	}

	var result map[string]string
	require.NoError(t, click("saveSelection").Decode(&result))
	assert.Equal(t, map[string]string{"saved": "hello"}, result)

	assert.ErrorIs(t, click("somethingElse").Err, bus.ErrNoResponse)
}

func TestRegistrar_RejectedButtonGetsNoHandler(t *testing.T) {
	t.Parallel()
	host, background := newPipe(t)

	var creates atomic.Int32
	acceptCreates(background, false, &creates)

	r := NewRegistrar(host, storage.NewMemoryStore())
	defer r.Close()

	called := false
	_, err := r.Register(context.Background(), testButton("reddit"), func(context.Context, ContextInfo) any {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrRejected)

	_, handled := r.handleClick(context.Background(), bus.Message{"type": "selection", "functionName": "saveSelection"})
	assert.False(t, handled)
	assert.False(t, called)
}

func TestRegistrar_UnpersistedButtonGetsNoHandler(t *testing.T) {
	t.Parallel()
	host, background := newPipe(t)

	var creates atomic.Int32
	acceptCreates(background, true, &creates)

	ctrl := gomock.NewController(t)
	store := storagemocks.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), ButtonStateKey).Return(nil, storage.ErrNotFound).AnyTimes()
	store.EXPECT().Set(gomock.Any(), ButtonStateKey, gomock.Any()).Return(errors.New("disk full"))

	r := NewRegistrar(host, store)
	defer r.Close()

	called := false
	created, err := r.Register(context.Background(), testButton("reddit"), func(context.Context, ContextInfo) any {
		called = true
		return nil
	})
	require.ErrorContains(t, err, "disk full")
	assert.False(t, created)
	assert.Equal(t, int32(1), creates.Load())

	_, handled := r.handleClick(context.Background(), bus.Message{"type": "selection", "functionName": "saveSelection"})
	assert.False(t, handled)
	assert.False(t, called)
}

func TestRegistrar_RemoveAll(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockBus := busmocks.NewMockBus(ctrl)
	mockBus.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Return(func() {})
	mockBus.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg bus.Message) error {
		assert.Equal(t, bus.MethodContextMenuRemoveAll, msg.Method())
		return nil
	})

	r := NewRegistrar(mockBus, storage.NewMemoryStore())
	require.NoError(t, r.RemoveAll(context.Background()))
}

func TestIsMenuClick(t *testing.T) {
	t.Parallel()

	assert.True(t, isMenuClick(bus.Message{"type": "page", "functionName": "f"}))
	assert.False(t, isMenuClick(bus.Message{"type": "page"}))
	assert.False(t, isMenuClick(bus.NewMessage(bus.MethodContextMenuCreate, map[string]any{"type": "page", "functionName": "f"})))
}
