package kafkax

import "errors"

var ErrClosed = errors.New("kafkax: client closed")
