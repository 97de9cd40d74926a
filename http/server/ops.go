package server

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	statusOK          = "ok"
	statusUnavailable = "unavailable"
)

// Check is a named readiness probe of one dependency.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Ops is what the operational routes expose.
type Ops struct {
	Registry *prometheus.Registry
	Checks   []Check

	// Operations lists the registered cqrs operations. Optional.
	Operations func() []string
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RegisterOps mounts /healthz, /readyz, /metrics and /operations.
func RegisterOps(r fiber.Router, ops Ops) {
	r.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": statusOK})
	})

	r.Get("/readyz", func(c *fiber.Ctx) error {
		res := runChecks(c.UserContext(), ops.Checks)
		if res.Status != statusOK {
			c.Status(fiber.StatusServiceUnavailable)
		}
		return c.JSON(res)
	})

	registry := ops.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.Get("/operations", func(c *fiber.Ctx) error {
		var list []string
		if ops.Operations != nil {
			list = ops.Operations()
		}
		return c.JSON(fiber.Map{"operations": list})
	})
}

// runChecks probes every dependency concurrently and reports each outcome.
func runChecks(ctx context.Context, checks []Check) readiness {
	res := readiness{Status: statusOK, Checks: make(map[string]string, len(checks))}

	var mu sync.Mutex
	var g errgroup.Group
	for _, check := range checks {
		g.Go(func() error {
			status := statusOK
			if err := check.Fn(ctx); err != nil {
				status = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			res.Checks[check.Name] = status
			if status != statusOK {
				res.Status = statusUnavailable
			}
			return nil
		})
	}
	_ = g.Wait()

	return res
}
