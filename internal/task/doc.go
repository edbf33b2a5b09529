// Package task manages background job queuing and processing.
// It provides mechanisms for asynchronous execution of notification side
// effects like email delivery, ensuring they don't block HTTP request
// handling. Work here is fire-and-forget: a failed or dropped job is logged,
// never surfaced to the request that triggered it.
package task
