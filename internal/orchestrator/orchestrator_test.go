package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento/internal/lockfile"
	"bento/internal/ports"
	"bento/internal/services"
	"bento/internal/siteconf"
)

func allOpen() ports.PortChecker {
	return ports.PortCheckerFunc(func(int) bool { return true })
}

type testEnv struct {
	stateDir string
	store    *siteconf.Store
	log      *eventLog
	observer *fakeObserver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		stateDir: dir,
		store:    siteconf.NewStore(filepath.Join(dir, "hadoop-conf"), filepath.Join(dir, "hbase-conf")),
		log:      &eventLog{},
		observer: &fakeObserver{},
	}
}

func (e *testEnv) config(svcs ...services.Service) Config {
	return Config{
		StateDir:   e.stateDir,
		Negotiator: ports.NewNegotiator(ports.DefaultSpecs(), ports.WithPortChecker(allOpen())),
		Store:      e.store,
		Services: func(ports.Assignment) ([]services.Service, error) {
			return svcs, nil
		},
		Observer: e.observer,
	}
}

func (e *testEnv) lockPath() string {
	return filepath.Join(e.stateDir, lockfile.FileName)
}

func TestOrchestrator_StartsInOrderAndStopsInReverse(t *testing.T) {
	env := newTestEnv(t)
	// Declared out of order on purpose; dependencies decide.
	c := newMockService("C", env.log, "B")
	b := newMockService("B", env.log, "A")
	a := newMockService("A", env.log)

	o := New(env.config(c, b, a))
	require.NoError(t, o.Start(context.Background()))

	assert.Equal(t, StateRunning, o.State())
	assert.Equal(t, []string{"start:A", "start:B", "start:C"}, env.log.all())

	data, err := os.ReadFile(env.lockPath())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data[:len(data)-1]))

	require.NoError(t, o.Stop(context.Background()))

	assert.Equal(t, StateStopped, o.State())
	assert.Equal(t, []string{"start:A", "start:B", "start:C", "stop:C", "stop:B", "stop:A"}, env.log.all())
	assert.NoFileExists(t, env.lockPath())
	assert.Equal(t, []State{
		StateIdle, StateNegotiating, StateStarting, StateRunning, StateStoppingOnRequest, StateStopped,
	}, o.Transitions())

	assert.Equal(t, []string{"A", "B", "C"}, env.observer.started)
	assert.Equal(t, []string{"C", "B", "A"}, env.observer.stopped)
	assert.Equal(t, "Stopped", env.observer.states[len(env.observer.states)-1])
}

func TestOrchestrator_StartFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	boom := errors.New("boom")

	a := newMockService("A", env.log)
	b := newMockService("B", env.log, "A")
	b.startFunc = func(ctx context.Context) error {
		assert.NoFileExists(t, env.lockPath(), "lock must not exist during startup")
		return boom
	}
	c := newMockService("C", env.log, "B")

	o := New(env.config(a, b, c))
	err := o.Start(context.Background())

	var startErr *ServiceStartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, "B", startErr.Service)
	assert.True(t, errors.Is(err, boom))

	assert.Equal(t, []string{"start:A", "start:B", "stop:A"}, env.log.all())
	assert.NoFileExists(t, env.lockPath())
	assert.Equal(t, StateStopped, o.State())
	assert.Contains(t, o.Transitions(), StateStoppingOnFailure)
	assert.NotContains(t, o.Transitions(), StateRunning)

	// Waiting or stopping after a failed start has nothing left to do.
	assert.NoError(t, o.Wait(context.Background()))
	assert.NoError(t, o.Stop(context.Background()))
}

func TestOrchestrator_StopIsBestEffort(t *testing.T) {
	env := newTestEnv(t)
	a := newMockService("A", env.log)
	b := newMockService("B", env.log, "A")
	b.stopFunc = func(ctx context.Context) error { return errors.New("stuck") }
	c := newMockService("C", env.log, "B")

	o := New(env.config(a, b, c))
	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Stop(context.Background()))

	assert.Equal(t, []string{"start:A", "start:B", "start:C", "stop:C", "stop:B", "stop:A"}, env.log.all())
	assert.NoFileExists(t, env.lockPath())
	assert.Equal(t, StateStopped, o.State())
}

func TestOrchestrator_RejectsWhenLocked(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.lockPath(), []byte(strconv.Itoa(os.Getpid())), 0o644))

	o := New(env.config(newMockService("A", env.log)))
	err := o.Start(context.Background())

	var running *lockfile.AlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.Equal(t, StateRejected, o.State())
	assert.Empty(t, env.log.all())
	assert.False(t, env.store.AnyExists(), "nothing is negotiated or written when rejected")
	assert.FileExists(t, env.lockPath(), "existing lock is left alone")
}

func TestOrchestrator_RejectsWhileAnotherRunIsStarting(t *testing.T) {
	env := newTestEnv(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	a := newMockService("A", env.log)
	a.startFunc = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}

	first := New(env.config(a))
	firstErr := make(chan error, 1)
	go func() { firstErr <- first.Start(context.Background()) }()
	<-entered

	second := New(env.config(newMockService("B", env.log)))
	err := second.Start(context.Background())

	var running *lockfile.AlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.True(t, running.Starting)
	assert.Equal(t, os.Getpid(), running.PID)
	assert.Equal(t, StateRejected, second.State())
	assert.NoFileExists(t, env.lockPath(), "the pid file appears only once running")

	close(release)
	require.NoError(t, <-firstErr)
	assert.Equal(t, StateRunning, first.State())
	assert.Equal(t, []string{"start:A"}, env.log.all())

	third := New(env.config(newMockService("C", env.log)))
	require.ErrorAs(t, third.Start(context.Background()), &running)
	assert.False(t, running.Starting, "a running cluster is reported through its pid file")

	require.NoError(t, first.Stop(context.Background()))
	fourth := New(env.config(newMockService("D", env.log)))
	require.NoError(t, fourth.Start(context.Background()))
	require.NoError(t, fourth.Stop(context.Background()))
}

func TestOrchestrator_RejectsCorruptLock(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.lockPath(), []byte("garbage"), 0o644))

	o := New(env.config(newMockService("A", env.log)))
	err := o.Start(context.Background())

	assert.True(t, errors.Is(err, lockfile.ErrCorruptLock))
	assert.Equal(t, StateRejected, o.State())
	assert.FileExists(t, env.lockPath())
}

func TestOrchestrator_NegotiationWithSharedDefault(t *testing.T) {
	env := newTestEnv(t)
	specs := []ports.Spec{
		{Name: "X", Default: 2000, Artifact: "xy-site", Key: "x.port"},
		{Name: "Y", Default: 2000, Artifact: "xy-site", Key: "y.port"},
	}
	taken := ports.PortCheckerFunc(func(p int) bool { return p != 2000 })

	var factoryPorts ports.Assignment
	cfg := env.config(newMockService("A", env.log))
	cfg.Negotiator = ports.NewNegotiator(specs, ports.WithPortChecker(taken))
	cfg.Confirm = func(n *ports.Negotiator) error { return nil }
	cfg.BuildArtifacts = func(a ports.Assignment) []*siteconf.Artifact {
		return []*siteconf.Artifact{siteconf.NewArtifact("xy-site", "test").
			Set("x.port", strconv.Itoa(a["X"])).
			Set("y.port", strconv.Itoa(a["Y"]))}
	}
	cfg.Services = func(a ports.Assignment) ([]services.Service, error) {
		factoryPorts = a
		return []services.Service{newMockService("A", env.log)}, nil
	}

	o := New(cfg)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	assert.Equal(t, ports.Assignment{"X": 2001, "Y": 2002}, factoryPorts)
	assert.Equal(t, "2001", env.store.ReadProperty("xy-site", "x.port", ""))
	assert.Equal(t, "2002", env.store.ReadProperty("xy-site", "y.port", ""))
	assert.Equal(t, [][]string{{"X", "Y"}}, env.observer.shifted)

	snap := o.Snapshot()
	assert.Equal(t, StateRunning, snap.State)
	assert.Equal(t, ports.Assignment{"X": 2001, "Y": 2002}, snap.Ports)
	require.Len(t, snap.Services, 1)
	assert.Equal(t, services.StateRunning, snap.Services[0].State)
}

func TestOrchestrator_UnconfirmedPortChangeAborts(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config(newMockService("A", env.log))
	cfg.Negotiator = ports.NewNegotiator(ports.DefaultSpecs(),
		ports.WithPortChecker(ports.PortCheckerFunc(func(p int) bool { return p != 8020 })))

	o := New(cfg)
	err := o.Start(context.Background())

	assert.True(t, errors.Is(err, ErrPortsChanged))
	assert.Contains(t, err.Error(), "NameNode 8020 -> 8021")
	assert.Empty(t, env.log.all())
	assert.False(t, env.store.AnyExists())
	assert.Equal(t, StateStopped, o.State())
	assert.NoFileExists(t, env.lockPath())
}

func TestOrchestrator_ConfirmCanOverride(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config(newMockService("A", env.log))
	cfg.Negotiator = ports.NewNegotiator(ports.DefaultSpecs(),
		ports.WithPortChecker(ports.PortCheckerFunc(func(p int) bool { return p != 8020 })))
	cfg.Confirm = func(n *ports.Negotiator) error {
		_, err := n.OverridePort(ports.NameNode, 9000)
		return err
	}

	o := New(cfg)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	assert.Equal(t, "hdfs://localhost:9000", env.store.ReadProperty(ports.ArtifactCore, "fs.defaultFS", ""))
}

func TestOrchestrator_ConfirmErrorAborts(t *testing.T) {
	env := newTestEnv(t)
	declined := errors.New("declined")
	cfg := env.config(newMockService("A", env.log))
	cfg.Negotiator = ports.NewNegotiator(ports.DefaultSpecs(),
		ports.WithPortChecker(ports.PortCheckerFunc(func(p int) bool { return p != 2181 })))
	cfg.Confirm = func(*ports.Negotiator) error { return declined }

	err := New(cfg).Start(context.Background())

	assert.True(t, errors.Is(err, declined))
	assert.Empty(t, env.log.all())
}

func TestOrchestrator_UsesPersistedPorts(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Write([]*siteconf.Artifact{siteconf.CoreSite(9020)}))

	var got ports.Assignment
	cfg := env.config()
	cfg.Services = func(a ports.Assignment) ([]services.Service, error) {
		got = a
		return nil, nil
	}

	o := New(cfg)
	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Stop(context.Background()))
	assert.Equal(t, 9020, got[ports.NameNode])

	cfg = env.config()
	cfg.UseConventionalDefaults = true
	cfg.Services = func(a ports.Assignment) ([]services.Service, error) {
		got = a
		return nil, nil
	}
	o = New(cfg)
	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Stop(context.Background()))
	assert.Equal(t, 8020, got[ports.NameNode])
}

func TestOrchestrator_NegotiationFailure(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config(newMockService("A", env.log))
	cfg.Negotiator = ports.NewNegotiator(
		[]ports.Spec{{Name: "X", Default: ports.MaxPort}},
		ports.WithPortChecker(ports.PortCheckerFunc(func(int) bool { return false })))

	err := New(cfg).Start(context.Background())

	var noPort *ports.NoPortAvailableError
	require.ErrorAs(t, err, &noPort)
	assert.Equal(t, ports.MaxPort, noPort.Start)
	assert.Empty(t, env.log.all())
}

func TestOrchestrator_ServiceFactoryAndCycleErrors(t *testing.T) {
	env := newTestEnv(t)

	cfg := env.config()
	cfg.Services = func(ports.Assignment) ([]services.Service, error) {
		return nil, errors.New("no binary")
	}
	o := New(cfg)
	assert.ErrorContains(t, o.Start(context.Background()), "no binary")
	assert.Equal(t, StateStopped, o.State())

	o = New(env.config(newMockService("A", env.log, "B"), newMockService("B", env.log, "A")))
	assert.ErrorContains(t, o.Start(context.Background()), "cycle")
	assert.Empty(t, env.log.all())
	assert.NoFileExists(t, env.lockPath())
}

func TestOrchestrator_WaitReturnsOnStop(t *testing.T) {
	env := newTestEnv(t)
	o := New(env.config(newMockService("A", env.log)))
	require.NoError(t, o.Start(context.Background()))

	waitErr := make(chan error, 1)
	go func() { waitErr <- o.Wait(context.Background()) }()

	require.NoError(t, o.Stop(context.Background()))

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after Stop")
	}
	assert.Equal(t, []string{"start:A", "stop:A"}, env.log.all())
}

func TestOrchestrator_WaitReturnsOnContextCancel(t *testing.T) {
	env := newTestEnv(t)
	o := New(env.config(newMockService("A", env.log)))
	require.NoError(t, o.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, o.Wait(ctx))
	assert.Equal(t, StateStopped, o.State())
	assert.Contains(t, o.Transitions(), StateStoppingOnRequest)
	assert.NoFileExists(t, env.lockPath())
}

func TestOrchestrator_ServiceExitTearsDown(t *testing.T) {
	env := newTestEnv(t)
	a := newMockService("A", env.log)
	b := newExitingService("B", env.log, "A")

	o := New(env.config(a, b))
	require.NoError(t, o.Start(context.Background()))

	b.exit()

	err := o.Wait(context.Background())
	assert.True(t, errors.Is(err, ErrServiceExited))
	assert.Contains(t, err.Error(), "B")
	assert.Equal(t, []string{"start:A", "start:B", "stop:B", "stop:A"}, env.log.all())
	assert.Contains(t, o.Transitions(), StateStoppingOnFailure)
	assert.NoFileExists(t, env.lockPath())
}

func TestOrchestrator_StopDoesNotReportExit(t *testing.T) {
	env := newTestEnv(t)
	b := newExitingService("B", env.log)

	o := New(env.config(b))
	require.NoError(t, o.Start(context.Background()))

	waitErr := make(chan error, 1)
	go func() { waitErr <- o.Wait(context.Background()) }()
	require.NoError(t, o.Stop(context.Background()))

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
}

func TestOrchestrator_StopWaitsForStartup(t *testing.T) {
	env := newTestEnv(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	a := newMockService("A", env.log)
	a.startFunc = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}

	o := New(env.config(a))
	startErr := make(chan error, 1)
	go func() { startErr <- o.Start(context.Background()) }()
	<-entered

	stopErr := make(chan error, 1)
	go func() { stopErr <- o.Stop(context.Background()) }()

	select {
	case <-stopErr:
		t.Fatal("Stop returned while startup was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-startErr)
	require.NoError(t, <-stopErr)
	assert.Equal(t, []string{"start:A", "stop:A"}, env.log.all())
	assert.Equal(t, StateStopped, o.State())
}

func TestOrchestrator_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	o := New(env.config())

	require.NoError(t, o.Stop(context.Background()))
	assert.Equal(t, StateStopped, o.State())
	assert.ErrorIs(t, o.Start(context.Background()), ErrInvalidTransition)

	o = New(env.config())
	assert.ErrorIs(t, o.Wait(context.Background()), ErrInvalidTransition)
}

func TestOrchestrator_LockLostRaceRollsBack(t *testing.T) {
	env := newTestEnv(t)
	a := newMockService("A", env.log)
	b := newMockService("B", env.log, "A")
	b.startFunc = func(ctx context.Context) error {
		// Another run grabs the lock while this one is starting.
		return os.WriteFile(env.lockPath(), []byte("4242"), 0o644)
	}

	o := New(env.config(a, b))
	err := o.Start(context.Background())

	var running *lockfile.AlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.Equal(t, 4242, running.PID)
	assert.Equal(t, []string{"start:A", "start:B", "stop:B", "stop:A"}, env.log.all())

	data, _ := os.ReadFile(env.lockPath())
	assert.Equal(t, "4242", string(data), "the other run's lock is kept")
}

func TestOrchestrator_HealthChecks(t *testing.T) {
	env := newTestEnv(t)
	a := &checkedService{mockService: newMockService("A", env.log), healthy: true}
	cfg := env.config(a)
	cfg.HealthInterval = 10 * time.Millisecond

	o := New(cfg)
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	require.Eventually(t, func() bool {
		h, ok := env.observer.healthOf("A")
		return ok && h
	}, 2*time.Second, 5*time.Millisecond)

	a.setHealthy(false)
	require.Eventually(t, func() bool {
		snap := o.Snapshot()
		return snap.Services[0].Healthy != nil && !*snap.Services[0].Healthy
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StateRunning, o.State(), "a failed health check does not stop the cluster")
}

func TestOrchestrator_HealthChecksDisabledByDefault(t *testing.T) {
	env := newTestEnv(t)
	a := &checkedService{mockService: newMockService("A", env.log)}

	o := New(env.config(a))
	require.NoError(t, o.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)

	assert.Nil(t, o.Snapshot().Services[0].Healthy)
	_, seen := env.observer.healthOf("A")
	assert.False(t, seen)
	require.NoError(t, o.Stop(context.Background()))
}

func TestOrchestrator_ProcessDetails(t *testing.T) {
	env := newTestEnv(t)
	a := &processLikeService{mockService: newMockService("A", env.log), pid: 4321}
	b := newMockService("B", env.log, "A")

	o := New(env.config(a, b))
	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	snap := o.Snapshot()
	require.Len(t, snap.Services, 2)
	assert.Equal(t, 4321, snap.Services[0].PID)
	assert.Zero(t, snap.Services[1].PID)

	cb := a.callback()
	require.NotNil(t, cb, "state changes of the engine are followed")
	cb("A", services.StateRunning, services.StateFailed, errors.New("exit status 1"))
}
