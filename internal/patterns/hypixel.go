package patterns

// Built-in Hypixel-flavor definitions. The chat patterns accept an optional
// server rank prefix ("[MVP+] ") and an optional guild rank suffix
// ("[Officer]") around the username. Lines ending in "joined." or "left."
// are presence events, not chat; the classifier guards against them before
// trying the chat classes, and the chat regexes additionally require the
// ": " separator so they cannot match either way.
func registerHypixel(c *Catalog) {
	const user = `[a-zA-Z0-9_]{1,16}`

	// Guild / officer chat.
	c.mustRegister("hypixel", ClassGuildChat, "guild",
		`^Guild > (?:\[[^\]]+\] )?(?P<username>`+user+`)(?: \[(?P<rank>[^\]]+)\])?: (?P<message>.+)$`)
	c.mustRegister("hypixel", ClassOfficerChat, "officer",
		`^Officer > (?:\[[^\]]+\] )?(?P<username>`+user+`)(?: \[(?P<rank>[^\]]+)\])?: (?P<message>.+)$`)

	// Presence and membership events.
	c.mustRegister("hypixel", ClassEvent, "join",
		`^Guild > (?P<username>`+user+`) joined\.$`)
	c.mustRegister("hypixel", ClassEvent, "leave",
		`^Guild > (?P<username>`+user+`) left\.$`)
	c.mustRegister("hypixel", ClassEvent, "welcome",
		`^(?:\[[^\]]+\] )?(?P<username>`+user+`) joined the guild!$`)
	c.mustRegister("hypixel", ClassEvent, "kick",
		`^(?:\[[^\]]+\] )?(?P<target>`+user+`) was kicked from the guild by (?:\[[^\]]+\] )?(?P<actor>`+user+`)!$`)
	c.mustRegister("hypixel", ClassEvent, "promote",
		`^(?:\[[^\]]+\] )?(?P<target>`+user+`) was promoted from (?P<from>.+) to (?P<to>.+)$`)
	c.mustRegister("hypixel", ClassEvent, "demote",
		`^(?:\[[^\]]+\] )?(?P<target>`+user+`) was demoted from (?P<from>.+) to (?P<to>.+)$`)
	c.mustRegister("hypixel", ClassEvent, "invite",
		`^(?:\[[^\]]+\] )?(?P<actor>`+user+`) invited (?:\[[^\]]+\] )?(?P<target>`+user+`) to the guild!$`)
	c.mustRegister("hypixel", ClassEvent, "invite",
		`^You invited (?:\[[^\]]+\] )?(?P<target>`+user+`) to your guild\. They have 5 minutes to accept\.$`)
	c.mustRegister("hypixel", ClassEvent, "online",
		`^Online Members \((?P<count>\d+)\): (?P<members>.+)$`)
	c.mustRegister("hypixel", ClassEvent, "online",
		`^Online Members: (?P<count>\d+)$`)
	c.mustRegister("hypixel", ClassEvent, "level",
		`^The Guild has reached Level (?P<level>\d+)!$`)
	c.mustRegister("hypixel", ClassEvent, "motd",
		`^Guild MOTD: (?P<motd>.+)$`)
	c.mustRegister("hypixel", ClassEvent, "misc",
		`^(?:\[[^\]]+\] )?(?P<username>`+user+`) left the guild!$`)

	// System feedback, mostly command replies the correlator matches on.
	c.mustRegister("hypixel", ClassSystem, "guild_mute",
		`^(?:\[[^\]]+\] )?(?P<actor>`+user+`) has muted (?:\[[^\]]+\] )?(?P<target>`+user+`) for (?P<duration>\S+)$`)
	c.mustRegister("hypixel", ClassSystem, "guild_mute_all",
		`^(?:\[[^\]]+\] )?(?P<actor>`+user+`) has muted the guild chat for (?P<duration>\S+)$`)
	c.mustRegister("hypixel", ClassSystem, "guild_unmute",
		`^(?:\[[^\]]+\] )?(?P<actor>`+user+`) has unmuted (?:\[[^\]]+\] )?(?P<target>`+user+`)$`)
	c.mustRegister("hypixel", ClassSystem, "guild_unmute_all",
		`^(?:\[[^\]]+\] )?(?P<actor>`+user+`) has unmuted the guild chat!$`)
	c.mustRegister("hypixel", ClassSystem, "block",
		`^Blocked (?P<target>`+user+`)\.?$`)
	c.mustRegister("hypixel", ClassSystem, "unblock",
		`^Unblocked (?P<target>`+user+`)\.?$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^Can't find a player by the name of '(?P<target>[^']+)'!?$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^You cannot invite this player to your guild!$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^That player is already in another guild!$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^This player is already in your guild!$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^You cannot kick this player!$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^You can only promote up to your own rank!$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^You do not have permission to use this command!$`)
	c.mustRegister("hypixel", ClassSystem, "command_error",
		`^Unknown command\. Type "/help" for help\.$`)
	c.mustRegister("hypixel", ClassSystem, "rank_change",
		`^You have been (?:promoted|demoted) to (?P<to>.+)$`)

	// Noise dropped before any other class is consulted.
	c.mustRegister("hypixel", ClassIgnore, "lobby_join",
		`^(?:\[[^\]]+\] )?`+user+` joined the lobby!`)
	c.mustRegister("hypixel", ClassIgnore, "friend_presence",
		`^Friend > `)
	c.mustRegister("hypixel", ClassIgnore, "api_key",
		`^Your new API key is `)
	c.mustRegister("hypixel", ClassIgnore, "blank",
		`^[\s-]*$`)

	// The generic flavor understands nothing but the shared chat shapes, so
	// unflavored servers still bridge plain guild chat.
	c.mustRegister("generic", ClassGuildChat, "guild",
		`^Guild > (?P<username>`+user+`): (?P<message>.+)$`)
	c.mustRegister("generic", ClassOfficerChat, "officer",
		`^Officer > (?P<username>`+user+`): (?P<message>.+)$`)
	c.mustRegister("generic", ClassIgnore, "blank",
		`^[\s-]*$`)
}
