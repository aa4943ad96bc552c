// Package transfer downloads a resolved video into the cache directory.
//
// The body is streamed into a temp file outside the cache directory and
// moved into place only when complete, so a failed or cancelled transfer
// never leaves a partial file behind. Progress is reported synchronously
// from the copy loop.
//
// # Usage
//
//	engine := transfer.New(transfer.Options{
//	    CacheDir:        "/var/cache/yeet/videos",
//	    TransferTimeout: 30 * time.Minute,
//	})
//
//	path, err := engine.Transfer(ctx, meta, func(s progress.Snapshot) {
//	    fmt.Printf("%.0f%%\n", s.Fraction()*100)
//	})
package transfer
