// Package handler implements the REST API of the currency exchange service
// and the request logging middleware shared by every route.
//
// All errors leave through writeError, which turns optimistic locking
// conflicts into the fixed CONFLICT body and maps every other error by its
// platform error code.
package handler
