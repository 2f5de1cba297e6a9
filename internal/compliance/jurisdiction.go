package compliance

// twoPartyAreaCodes maps NANP area codes in two-party-consent states to the
// state abbreviation. Recording a call to these numbers requires an active
// consent record. Numbers outside this table are treated as one-party.
//
// Covered states: CA, CT, FL, IL, MD, MA, MI, MT, NH, NV, OR, PA, WA.
var twoPartyAreaCodes = map[string]string{
	// California
	"209": "CA", "213": "CA", "279": "CA", "310": "CA", "323": "CA",
	"341": "CA", "408": "CA", "415": "CA", "424": "CA", "442": "CA",
	"510": "CA", "530": "CA", "559": "CA", "562": "CA", "619": "CA",
	"626": "CA", "628": "CA", "650": "CA", "657": "CA", "661": "CA",
	"669": "CA", "707": "CA", "714": "CA", "747": "CA", "760": "CA",
	"805": "CA", "818": "CA", "820": "CA", "831": "CA", "840": "CA",
	"858": "CA", "909": "CA", "916": "CA", "925": "CA", "949": "CA",
	"951": "CA",
	// Connecticut
	"203": "CT", "475": "CT", "860": "CT", "959": "CT",
	// Florida
	"239": "FL", "305": "FL", "321": "FL", "352": "FL", "386": "FL",
	"407": "FL", "561": "FL", "689": "FL", "727": "FL", "754": "FL",
	"772": "FL", "786": "FL", "813": "FL", "850": "FL", "863": "FL",
	"904": "FL", "941": "FL", "954": "FL",
	// Illinois
	"217": "IL", "224": "IL", "309": "IL", "312": "IL", "331": "IL",
	"618": "IL", "630": "IL", "708": "IL", "773": "IL", "779": "IL",
	"815": "IL", "847": "IL", "872": "IL",
	// Maryland
	"240": "MD", "301": "MD", "410": "MD", "443": "MD", "667": "MD",
	// Massachusetts
	"339": "MA", "351": "MA", "413": "MA", "508": "MA", "617": "MA",
	"774": "MA", "781": "MA", "857": "MA", "978": "MA",
	// Michigan
	"231": "MI", "248": "MI", "269": "MI", "313": "MI", "517": "MI",
	"586": "MI", "616": "MI", "734": "MI", "810": "MI", "906": "MI",
	"947": "MI", "989": "MI",
	// Montana
	"406": "MT",
	// New Hampshire
	"603": "NH",
	// Nevada
	"702": "NV", "725": "NV", "775": "NV",
	// Oregon
	"458": "OR", "503": "OR", "541": "OR", "971": "OR",
	// Pennsylvania
	"215": "PA", "223": "PA", "267": "PA", "272": "PA", "412": "PA",
	"445": "PA", "484": "PA", "570": "PA", "610": "PA", "717": "PA",
	"724": "PA", "814": "PA", "878": "PA",
	// Washington
	"206": "WA", "253": "WA", "360": "WA", "425": "WA", "509": "WA",
	"564": "WA",
}

// RequiresTwoPartyConsent reports whether the number's area code sits in a
// two-party-consent jurisdiction. Only +1 (NANP) numbers carry area codes
// this table understands.
func RequiresTwoPartyConsent(phone string) bool {
	ac, ok := areaCode(phone)
	if !ok {
		return false
	}
	_, twoParty := twoPartyAreaCodes[ac]
	return twoParty
}

func areaCode(phone string) (string, bool) {
	if len(phone) < 5 || phone[0] != '+' || phone[1] != '1' {
		return "", false
	}
	return phone[2:5], true
}
