package handlers

import "time"

// timeNow is the server clock used for createdAt stamps
var timeNow = time.Now
