// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skupperproject/skupper-router/common"
	"github.com/skupperproject/skupper-router/confengine"
	"github.com/skupperproject/skupper-router/forwarder"
	"github.com/skupperproject/skupper-router/internal/sigs"
	"github.com/skupperproject/skupper-router/logger"
	"github.com/skupperproject/skupper-router/router"
	"github.com/skupperproject/skupper-router/server"
)

// Config is the controller's own slice of the config tree, separate
// from the router.Config the core itself unpacks.
type Config struct {
	// StuckDeliveryLogInterval bounds how often a stuck delivery
	// notification for the same link is re-logged, to avoid flooding
	// the log with one line per timer tick while a link stays stuck.
	StuckDeliveryLogInterval time.Duration `config:"stuckDeliveryLogInterval"`
}

func (c Config) logInterval() time.Duration {
	if c.StuckDeliveryLogInterval <= 0 {
		return time.Minute
	}
	return c.StuckDeliveryLogInterval
}

// Controller owns the router core and everything that drives it: the
// action-queue and timer-thread goroutines, the notification consumer,
// and the admin HTTP server.
type Controller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       Config
	buildInfo common.BuildInfo

	core *router.Core
	svr  *server.Server
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	if opts.Filename == "" {
		opts.Filename = "packetd.log"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

// New builds a Controller: it reads the router/controller/server config
// sub-trees, constructs the router.Core (forwarder stubbed until a real
// routing table is wired in), and the optional admin server.
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	var rcfg router.Config
	if err := conf.UnpackChild("router", &rcfg); err != nil {
		return nil, err
	}

	var cfg Config
	if err := conf.UnpackChild("controller", &cfg); err != nil {
		return nil, err
	}

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	core := router.New(rcfg, forwarder.Null{})

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		buildInfo: buildInfo,
		core:      core,
		svr:       svr,
	}, nil
}

// Start launches the core thread, the timer thread, the notification
// consumer, and the admin server.
func (c *Controller) Start() error {
	c.setupServer()

	go c.core.Queue().Run(c.ctx, c.core)
	go router.RunTimerThread(c.ctx, c.core)
	go c.consumeNotifications()

	if c.svr != nil {
		go func() {
			err := c.svr.ListenAndServe()
			if !errors.Is(err, io.EOF) {
				logger.Errorf("failed to start server: %v", err)
			}
		}()
	}

	return nil
}

// consumeNotifications drains the core's notification bus, turning
// each event into a metric and a rate-limited log line. Any other
// collaborator can subscribe the same bus the same way.
func (c *Controller) consumeNotifications() {
	sub := c.core.Notifications(256)
	defer sub.Close()

	lastLogged := make(map[string]time.Time)
	for {
		msg, ok := sub.PopTimeout(time.Second)
		if !ok {
			select {
			case <-c.ctx.Done():
				return
			default:
				continue
			}
		}

		n, ok := msg.(router.Notification)
		if !ok {
			continue
		}
		notificationsTotal.WithLabelValues(notificationKindName(n.Kind)).Inc()

		key := notificationKindName(n.Kind) + "/" + n.ConnID + "/" + n.LinkName
		if last, seen := lastLogged[key]; seen && n.Timestamp.Sub(last) < c.cfg.logInterval() {
			continue
		}
		lastLogged[key] = n.Timestamp
		logger.Infof("router: %s conn=%s link=%s %s", notificationKindName(n.Kind), n.ConnID, n.LinkName, n.Detail)
	}
}

func (c *Controller) recordMetrics() {
	uptime.Set(float64(time.Now().Unix() - common.Started()))
	buildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Inc()
}

func (c *Controller) setupServer() {
	if c.svr == nil {
		return
	}

	// Metric Routes
	c.svr.RegisterGetRoute("/metrics", func(w http.ResponseWriter, r *http.Request) {
		c.recordMetrics()
		promhttp.Handler().ServeHTTP(w, r)
	})
	c.registerManagementRoutes()

	// Admin Routes
	c.svr.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.FormValue("level")
		logger.SetLoggerLevel(level)
		w.Write([]byte(`{"status": "success"}`))
	})
	c.svr.RegisterPostRoute("/-/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := sigs.SelfReload(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
	})
}

// Reload re-reads the router sub-tree's watermark overrides. Links and
// sessions already open keep their existing flow-control objects; only
// newly created ones observe the changed config.
func (c *Controller) Reload(conf *confengine.Config) error {
	var rcfg router.Config
	if err := conf.UnpackChild("router", &rcfg); err != nil {
		return err
	}
	c.core.UpdateConfig(rcfg)
	return nil
}

func (c *Controller) Stop() {
	c.cancel()
}
