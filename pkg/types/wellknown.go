package types

// Well-known chain names.
var (
	SystemAccountName    = MustNameFromString("pulse")
	NullAccountName      = MustNameFromString("pulse.null")
	ProducersAccountName = MustNameFromString("pulse.prods")

	OwnerPermissionName    = MustNameFromString("owner")
	ActivePermissionName   = MustNameFromString("active")
	MajorityPermissionName = MustNameFromString("prod.major")
	MinorityPermissionName = MustNameFromString("prod.minor")
	AnyPermissionName      = MustNameFromString("pulse.any")

	UpdateAuthActionName  = MustNameFromString("updateauth")
	DeleteAuthActionName  = MustNameFromString("deleteauth")
	LinkAuthActionName    = MustNameFromString("linkauth")
	UnlinkAuthActionName  = MustNameFromString("unlinkauth")
	CancelDelayActionName = MustNameFromString("canceldelay")
)
