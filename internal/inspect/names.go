package inspect

import "fmt"

// Display names for the packet families and actions of the EO protocol.
// Unknown ids render as hex.
var familyNames = map[byte]string{
	1: "Connection", 2: "Account", 3: "Character", 4: "Login", 5: "Welcome",
	6: "Walk", 7: "Face", 8: "Chair", 9: "Emote", 11: "Attack",
	12: "Spell", 13: "Shop", 14: "Item", 16: "StatSkill", 17: "Global",
	18: "Talk", 19: "Warp", 21: "Jukebox", 22: "Players", 23: "Avatar",
	24: "Party", 25: "Refresh", 26: "Npc", 27: "PlayerRange", 28: "NpcRange",
	29: "Range", 30: "Paperdoll", 31: "Effect", 32: "Trade", 33: "Chest",
	34: "Door", 35: "Message", 36: "Bank", 37: "Locker", 38: "Barber",
	39: "Guild", 40: "Music", 41: "Sit", 42: "Recover", 43: "Board",
	44: "Cast", 45: "Arena", 46: "Priest", 47: "Marriage", 48: "AdminInteract",
	49: "Citizen", 50: "Quest", 51: "Book", 250: "Error", 255: "Init",
}

var actionNames = map[byte]string{
	1: "Request", 2: "Accept", 3: "Reply", 4: "Remove", 5: "Agree",
	6: "Create", 7: "Add", 8: "Player", 9: "Take", 10: "Use",
	11: "Buy", 12: "Sell", 13: "Open", 14: "Close", 15: "Msg",
	16: "Spec", 17: "Admin", 18: "List", 20: "Tell", 21: "Report",
	22: "Announce", 23: "Server", 24: "Drop", 25: "Junk", 26: "Obtain",
	27: "Get", 28: "Kick", 29: "Rank", 30: "TargetSelf", 31: "TargetOther",
	33: "TargetGroup", 34: "Dialog", 240: "Ping", 241: "Pong",
	242: "Net242", 243: "Net243", 244: "Net244", 250: "Error", 255: "Init",
}

// FamilyName returns the protocol name of a packet family.
func FamilyName(f byte) string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", f)
}

// ActionName returns the protocol name of a packet action.
func ActionName(a byte) string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", a)
}

// PacketName renders a header as "Family_Action".
func PacketName(family, action byte) string {
	return FamilyName(family) + "_" + ActionName(action)
}
