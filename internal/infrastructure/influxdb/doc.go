// Package influxdb records dispatch timings in InfluxDB.
//
// Each endpoint driven by a dispatch becomes one endpoint_dispatch point
// tagged with the endpoint name and protocol kind, carrying duration_ms and
// success fields. Writes are batched by the client library according to the
// influxdb section of the configuration (batch_size, flush_interval).
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteEndpointDispatch("crosspoint", "serial", 12*time.Millisecond, true)
package influxdb
