// Package rpc is the typed call layer between clanboard and the clan host.
//
// # Overview
//
// Every backend capability is addressed by an Operation. A call sends a
// Request envelope (body plus header) and receives a Response envelope whose
// status is either "success" with data, or "error" with a list of
// ErrorDetail values. The package never interprets operation bodies; the
// clanapi package maps them to domain types.
//
// # Architecture
//
//   - operations.go: the closed Operation enum
//   - envelope.go: Request, Response, Event and APIError
//   - client.go: Client, call options, pending-call registry
//   - host.go: HostTransport, an in-process host used by tests and the
//     offline demo backend
//   - nats.go: NATSTransport, request/reply over NATS subjects
//   - metrics.go: Prometheus collectors for call outcomes
//
// # Client Usage
//
//	tr, err := rpc.DialNATS(rpc.NATSOptions{URL: cfg.NATSURL, Logger: log})
//	if err != nil {
//		return err
//	}
//	client, err := rpc.NewClient(tr, rpc.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	var out []string
//	err = client.Call(ctx, rpc.OpListMachines, body, &out,
//		rpc.WithLogGroup(clanID, ""))
//
// # Task Identity
//
// Each call carries a fresh UUID in header.op_key. The same id is the
// task id used by cancel_task and delete_task, and the key under which the
// call appears in Client.Pending until it completes.
//
// # Cancellation
//
// Two paths exist:
//
//   - Context cancellation: Call returns ctx.Err() at once and sends
//     delete_task for the abandoned task in the background. The result of
//     delete_task is only logged.
//   - Client.Cancel: sends cancel_task and marks the pending call as
//     cancelled. Observers see the flag in CallFinished and can suppress
//     the failure notification that follows.
//
// # Error Handling
//
//   - Unknown operation: ErrUnknownOperation, returned before any I/O for
//     names outside the enum, and by transports when the host does not
//     serve the name
//   - Application failure: *APIError with the host's details
//   - Transport failure: wrapped with the operation name via fmt.Errorf
//
// # Thread Safety
//
// Client and both transports are safe for concurrent use.
package rpc
