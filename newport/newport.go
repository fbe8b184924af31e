/*Package newport provides drivers for Newport motion controllers which speak
the ESP command language (ESP301, and the single-axis SMC100 family).

Both devices use an ASCII request/response protocol over a serial line, where
every command is an axis address, a two-letter mnemonic, and an optional value
or "?", e.g. "1PA10.5" or "2TP?".  The differences between the two generations
(command echo, error reporting, which commands exist at all) are captured in a
Dialect, so there is one Controller type for both.

The zero-th order usage is:

	ctl := newport.NewESP301(addr, false)
	err := ctl.DetectAxes()
	// handle err
	err = ctl.MoveAbs(1, 10.5)

Controllers are safe for concurrent use; the underlying connection is owned by
a comm.Pool of capacity one, so commands from multiple goroutines are
serialized onto the single link.
*/
package newport
