package configuration

// defaultConfig loaded anyway when server starts
// may be extended/replaced by user-provided config later
var defaultConfig = []byte(`
version: v0.0.1
system:
  log:
    console:
      level: info # available levels: debug, info, warn, error, dpanic, panic, fatal
  workers:
    size: 64
    queue: 1024
    spawn: 4
  metrics:
    period: 60
  health:
    addr: ""
broker:
  options:
    prefetch: 1
    reportUnroutable: false
    maxFrameSize: 1048576
  vhosts:
    - name: /
      persistence: boltdb
listeners:
  defaultAddr: ""
  ports:
    tcp:
      "5672":
        host: ""
`)
