package utils

// TabSessionHeader carries the per-tab session id that scopes handoff and notices.
const TabSessionHeader = "X-Session-ID"

// TabSessionKey is the gin context key holding the resolved tab session id.
const TabSessionKey = "tabID"

// DemoTokenPrefix marks bearer tokens issued by the demo login.
const DemoTokenPrefix = "oplugy_demo_"
