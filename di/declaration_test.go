package di_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gocrud/decor/di"
)

// Recorder 记录处理器的调用，由容器注入到处理器中。
type Recorder struct {
	Created   int
	Destroyed int
	Contexts  []di.Declaration
}

type counterHandler struct {
	di.Declaration
	Rec *Recorder `di:""`
}

func (h *counterHandler) OnCreate() error {
	h.Rec.Created++
	h.Rec.Contexts = append(h.Rec.Contexts, h.Declaration)
	return nil
}

func (h *counterHandler) OnDestroy() error {
	h.Rec.Destroyed++
	return nil
}

var counterKind = di.DefineDeclarationKind[*counterHandler]()

type Ticker struct {
	Clock *Clock `di:""`
}

func (t *Ticker) Tick() {}

func init() {
	di.Class[Ticker](counterKind.On("Tick", "every-second"))
}

func newCounterContainer(t *testing.T) (*di.Container, *Recorder) {
	t.Helper()
	c := di.New()
	rec := &Recorder{}
	if err := di.BindInstance(c, rec); err != nil {
		t.Fatalf("BindInstance failed: %v", err)
	}
	_ = di.Bind[*Clock](c)
	return c, rec
}

// 测试单例上的声明只初始化一次
func TestDeclarationCreatedOnceForSingleton(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.Bind[*Ticker](c)

	if err := c.FlushQueue(); err != nil {
		t.Fatalf("FlushQueue failed: %v", err)
	}
	if rec.Created != 1 {
		t.Fatalf("expected counter 1 after flush, got %d", rec.Created)
	}

	ticker := di.MustGet[*Ticker](c)
	if rec.Created != 1 {
		t.Errorf("expected counter to stay 1, got %d", rec.Created)
	}

	ctx := rec.Contexts[0]
	if ctx.Instance != any(ticker) {
		t.Error("expected the handler to see its owning instance")
	}
	if ctx.Member != "Tick" || ctx.Options != "every-second" {
		t.Errorf("unexpected context %+v", ctx)
	}
	if ctx.Class != reflect.TypeOf(Ticker{}) {
		t.Errorf("expected class Ticker, got %v", ctx.Class)
	}
}

func TestDeclarationCreatedPerTransient(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.BindTransient[*Ticker](c)

	di.MustGet[*Ticker](c)
	di.MustGet[*Ticker](c)
	if rec.Created != 2 {
		t.Errorf("expected one handler per transient instance, got %d", rec.Created)
	}
}

// 测试处理器在实例依赖图填充完成后才初始化
func TestDeclarationRunsAfterInjection(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.Bind[*Ticker](c)

	ticker := di.MustGet[*Ticker](c)
	if ticker.Clock == nil {
		t.Fatal("expected Clock to be injected")
	}
	owner := rec.Contexts[0].Instance.(*Ticker)
	if owner.Clock == nil {
		t.Error("expected the owner to be fully injected when the handler runs")
	}
}

func TestRebindDestroysDeclarationsOnce(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.Bind[*Ticker](c)
	_ = c.FlushQueue()

	_ = di.Bind[*Ticker](c)
	if rec.Destroyed != 1 {
		t.Fatalf("expected 1 destroy after rebinding, got %d", rec.Destroyed)
	}
	_ = di.Bind[*Ticker](c)
	if rec.Destroyed != 1 {
		t.Errorf("expected destroy count to stay 1, got %d", rec.Destroyed)
	}
}

func TestInitializeDeclarationsIsIdempotent(t *testing.T) {
	c, rec := newCounterContainer(t)
	ticker := &Ticker{}

	if err := di.InitializeDeclarations(ticker, c); err != nil {
		t.Fatalf("InitializeDeclarations failed: %v", err)
	}
	_ = di.InitializeDeclarations(ticker, c)
	if rec.Created != 1 {
		t.Errorf("expected a single initialization, got %d", rec.Created)
	}

	if err := di.DestroyDeclarations(ticker, c); err != nil {
		t.Fatalf("DestroyDeclarations failed: %v", err)
	}
	_ = di.DestroyDeclarations(ticker, c)
	if rec.Destroyed != 1 {
		t.Errorf("expected a single destroy, got %d", rec.Destroyed)
	}
}

// 同一实例在不同容器中分别登记
func TestDeclarationsArePerContainer(t *testing.T) {
	c1, rec1 := newCounterContainer(t)
	c2, rec2 := newCounterContainer(t)
	ticker := &Ticker{}

	_ = di.InitializeDeclarations(ticker, c1)
	_ = di.InitializeDeclarations(ticker, c2)
	if rec1.Created != 1 || rec2.Created != 1 {
		t.Fatalf("expected one handler per container, got %d and %d", rec1.Created, rec2.Created)
	}

	_ = di.DestroyDeclarations(ticker, c1)
	if rec1.Destroyed != 1 || rec2.Destroyed != 0 {
		t.Errorf("expected only c1's handler destroyed, got %d and %d", rec1.Destroyed, rec2.Destroyed)
	}
}

type PeriodicTicker struct {
	Ticker
}

func TestEmbeddedEntries(t *testing.T) {
	entries := di.EntriesOf(reflect.TypeOf(&PeriodicTicker{}))
	if len(entries) != 1 || entries[0].Member != "Tick" {
		t.Fatalf("expected the embedded Tick entry, got %+v", entries)
	}
	if entries[0].Handler != counterKind.Handler() {
		t.Errorf("unexpected handler %v", entries[0].Handler)
	}
}

type failingHandler struct {
	di.Declaration
}

var errHandler = errors.New("handler failed")

func (h *failingHandler) OnCreate() error { return errHandler }

type Broken struct{}

func init() {
	di.Class[Broken](di.DefineDeclarationKind[*failingHandler]().On("", nil))
}

func TestDeclarationCreateError(t *testing.T) {
	c := di.New()
	_ = di.Bind[*Broken](c)

	if err := di.InitializeContainer(c); !errors.Is(err, errHandler) {
		t.Fatalf("expected the handler error, got %v", err)
	}
}

type closer struct {
	disposable
}

func TestDestroyContainer(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.Bind[*Ticker](c)
	_ = di.Bind[*closer](c)
	unused := &disposable{}
	_ = di.BindInstance(c, unused)

	if err := di.InitializeContainer(c); err != nil {
		t.Fatalf("InitializeContainer failed: %v", err)
	}
	cl := di.MustGet[*closer](c)

	if err := di.DestroyContainer(c); err != nil {
		t.Fatalf("DestroyContainer failed: %v", err)
	}
	if rec.Destroyed != 1 {
		t.Errorf("expected the Ticker handler destroyed, got %d", rec.Destroyed)
	}
	if cl.disposed != 1 || unused.disposed != 1 {
		t.Errorf("expected disposers to run once, got %d and %d", cl.disposed, unused.disposed)
	}

	// 单例缓存已清空，再次解析会得到新实例
	if di.MustGet[*closer](c) == cl {
		t.Error("expected a new singleton after destroy")
	}
}

// 瞬态实例和 Resolve 创建的实例上的处理器在销毁容器时一并销毁
func TestDestroyContainerSweepsUnboundInstances(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.BindTransient[*Ticker](c)

	for i := 0; i < 3; i++ {
		di.MustGet[*Ticker](c)
	}
	if _, err := di.Resolve[*Ticker](c); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Created != 4 {
		t.Fatalf("expected 4 handlers, got %d", rec.Created)
	}

	if err := di.DestroyContainer(c); err != nil {
		t.Fatalf("DestroyContainer failed: %v", err)
	}
	if rec.Destroyed != 4 {
		t.Errorf("expected all 4 handlers destroyed, got %d", rec.Destroyed)
	}
	_ = di.DestroyContainer(c)
	if rec.Destroyed != 4 {
		t.Errorf("expected no further destroys, got %d", rec.Destroyed)
	}
}

type Beacon struct{}

func (Beacon) Blink() {}

func init() {
	di.Class[Beacon](counterKind.On("Blink", nil))
}

// 零大小类型的实例共享地址，每个实例仍各自得到处理器
func TestZeroSizeInstancesGetHandlers(t *testing.T) {
	c, rec := newCounterContainer(t)
	_ = di.BindTransient[*Beacon](c)

	di.MustGet[*Beacon](c)
	di.MustGet[*Beacon](c)
	if rec.Created != 2 {
		t.Fatalf("expected one handler per instance, got %d", rec.Created)
	}

	_ = di.DestroyContainer(c)
	if rec.Destroyed != 2 {
		t.Errorf("expected both handlers destroyed, got %d", rec.Destroyed)
	}
}
