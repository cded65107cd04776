package controller

import (
	"github.com/nerrad567/video-route/internal/drivers"
	"github.com/nerrad567/video-route/internal/drivers/httpget"
	"github.com/nerrad567/video-route/internal/drivers/serial"
	"github.com/nerrad567/video-route/internal/drivers/switcher"
	"github.com/nerrad567/video-route/internal/drivers/telnet"
	"github.com/nerrad567/video-route/internal/drivers/wsrpc"
	"github.com/nerrad567/video-route/internal/routing"
)

// Builtin returns the constructors for every supported kind.
//
// Nothing is constructed until the registry first needs a kind, so a host
// without serial enumeration can still drive network endpoints.
func Builtin(logger drivers.Logger) map[routing.Kind]Constructor {
	if logger == nil {
		logger = drivers.NopLogger()
	}
	return map[routing.Kind]Constructor{
		routing.KindSerial:   constructor(serial.New, logger),
		routing.KindTelnet:   constructor(telnet.New, logger),
		routing.KindHTTPGet:  constructor(httpget.New, logger),
		routing.KindSwitcher: constructor(switcher.New, logger),
		routing.KindWSRPC:    constructor(wsrpc.New, logger),
	}
}

func constructor[D Driver](build func(drivers.Logger) (D, error), logger drivers.Logger) Constructor {
	return func() (Driver, error) {
		d, err := build(logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
