// MedLink - Managed Real-Time Connections for Telemedicine Clients
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/medlink

/*
Package supervisor provides process supervision for medlink and the relay
using suture v4.

# Overview

Services are organized into two layers for failure isolation:

	RootSupervisor ("medlink" or "medlink-relay")
	├── RealtimeSupervisor ("realtime-layer")
	│   ├── ConnectionManagerService (medlink)
	│   ├── NetworkProbe (medlink, if NETWORK_PROBE_ENABLED)
	│   └── HubService (relay)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in the realtime layer restarts only that layer, so /healthz and
/metrics stay available while connections recover.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRealtimeService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return tree.Serve(ctx)

# Failure Handling

Each service failure increments a counter that decays over FailureDecay
seconds. Once it exceeds FailureThreshold the supervisor waits
FailureBackoff before the next restart.

Return behavior for services:
  - nil: stopped cleanly, not restarted
  - error: crashed, restarted
  - context canceled: shutdown requested, return promptly

# Debugging Shutdown Issues

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("Service did not stop")
	}
*/
package supervisor
