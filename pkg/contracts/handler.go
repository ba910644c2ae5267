// Package contracts holds the interfaces the application shell needs from
// service packages.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts a service's routes on the application router.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
