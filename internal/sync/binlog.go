package sync

import (
	"context"
	"fmt"
	"regexp"

	"github.com/go-mysql-org/go-mysql/canal"
	"go.uber.org/zap"

	"db-local-sync/internal/config"
	"db-local-sync/internal/logger"
)

// ChangeListener follows the remote server's binlog and triggers a cycle as
// soon as a row in the watched database changes, instead of waiting for the
// next tick. Bursts of events collapse into a single trigger; cycles already
// in flight skip the trigger as usual.
type ChangeListener struct {
	cfg     config.DatabaseConnection
	canal   *canal.Canal
	changed chan struct{}
	trigger func()
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewChangeListener(cfg config.DatabaseConnection, serverID uint32, trigger func()) (*ChangeListener, error) {
	user, password := cfg.ReplicationUser, cfg.ReplicationPassword
	if user == "" {
		user, password = cfg.User, cfg.Password
	}

	ccfg := canal.NewDefaultConfig()
	ccfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ccfg.User = user
	ccfg.Password = password
	ccfg.Flavor = "mysql"
	ccfg.ServerID = serverID
	ccfg.Dump.ExecutionPath = "" // follow the binlog only, never dump
	ccfg.IncludeTableRegex = []string{"^" + regexp.QuoteMeta(cfg.Database) + `\..*$`}

	c, err := canal.NewCanal(ccfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create canal: %w", err)
	}

	l := newChangeListener(cfg, trigger)
	l.canal = c
	c.SetEventHandler(&eventHandler{listener: l})
	return l, nil
}

func newChangeListener(cfg config.DatabaseConnection, trigger func()) *ChangeListener {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChangeListener{
		cfg:     cfg,
		changed: make(chan struct{}, 1),
		trigger: trigger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start follows the binlog from the server's current position.
func (l *ChangeListener) Start() error {
	pos, err := l.canal.GetMasterPos()
	if err != nil {
		return fmt.Errorf("failed to read binlog position: %w", err)
	}

	logger.Log.Info("Starting binlog listener",
		zap.String("host", l.cfg.Host),
		zap.String("binlog_file", pos.Name),
		zap.Uint32("binlog_pos", pos.Pos),
	)

	go func() {
		if err := l.canal.RunFrom(pos); err != nil && l.ctx.Err() == nil {
			logger.Log.Error("Canal run error", zap.Error(err))
		}
	}()
	go l.loop()

	return nil
}

func (l *ChangeListener) Stop() {
	l.cancel()
	if l.canal != nil {
		l.canal.Close()
	}
	logger.Log.Info("Stopped binlog listener")
}

func (l *ChangeListener) loop() {
	for {
		select {
		case <-l.changed:
			if l.ctx.Err() != nil {
				return
			}
			logger.Log.Debug("Remote change observed, triggering sync")
			l.trigger()
		case <-l.ctx.Done():
			return
		}
	}
}

// notifyChange records that something changed without blocking the binlog
// reader.
func (l *ChangeListener) notifyChange() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}

type eventHandler struct {
	canal.DummyEventHandler
	listener *ChangeListener
}

func (h *eventHandler) OnRow(e *canal.RowsEvent) error {
	if e.Table == nil || e.Table.Schema != h.listener.cfg.Database {
		return nil
	}

	switch e.Action {
	case canal.InsertAction, canal.UpdateAction, canal.DeleteAction:
		h.listener.notifyChange()
	}
	return nil
}

func (h *eventHandler) String() string {
	return "ChangeEventHandler"
}
