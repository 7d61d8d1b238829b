// Package biscuit drives a single "Biscuit" BLE peripheral: a vendor GATT service with a
// 20-byte write channel, a polled read channel and a flow-controlled notification stream in
// which the host acknowledges every chunk by writing 0x01 to the next-chunk characteristic.
//
// A Session owns the connection lifecycle, the attribute cache, the write journal and the
// notification registry. After an unexpected link drop the host stack reconnects on its
// own; the Session then either finishes the interrupted discovery or replays the journal and
// re-enables notifications so callers see the same device they configured.
//
//	s, err := biscuit.Discover(ctx, adapter, biscuit.Filter{}, logger)
//	if err != nil { ... }
//	if err := s.Connect(ctx); err != nil { ... }
//	defer s.Disconnect(context.Background())
//	if err := s.DiscoverAttributes(ctx); err != nil { ... }
//	s.OnData(func(chunk []byte) { ... })
//	err = s.NotifyData(ctx)
package biscuit
