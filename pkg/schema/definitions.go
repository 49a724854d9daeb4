package schema

const builtinSchema = `
// Calendar date, optionally followed by an RFC 3339 time part.
#Date: string & =~"^[0-9]{4}-[0-9]{2}-[0-9]{2}"

#PropertyDetails: {
	// Address is fixed once a version exists.
	address:         string & !=""
	propertyName?:   string
	propertyType?:   string
	market?:         string
	submarket?:      string
	buildingSizeSf:  number & >=0
	yearBuilt?:      int & >=1600 & <=3000
}

#UnderwritingInputs: {
	estStartDate:    #Date
	holdPeriodYears: int & >=0
	purchasePrice?:  null | number & >=0
	goingInCapRate?: null | number & >=0 & <=1
	exitCapRate?:    null | number & >=0 & <=1
}

#Broker: {
	id?:        string
	name:       string & !=""
	phone?:     string
	email?:     string
	company?:   string
	isDeleted?: bool
	deletedAt?: null | string
	deletedBy?: string
}

#Tenant: {
	id?:                string
	tenantName:         string & !=""
	creditType?:        string
	squareFeet:         number & >=0
	rentPsf?:           number
	annualEscalations?: number
	leaseStart:         #Date
	leaseEnd:           #Date
	leaseType?:         string
	renew?:             string
	downtimeMonths?:    int & >=0
	tiPsf?:             number
	lcPsf?:             number
	isVacant?:          bool
	isDeleted?:         bool
	deletedAt?:         null | string
	deletedBy?:         string
}

// Whole-aggregate payload used by create and save.
#Property: {
	propertyId?:       string
	version?:          string
	propertyDetails:   #PropertyDetails
	underwritingInputs: #UnderwritingInputs
	brokers?:          [...#Broker]
	tenants?:          [...#Tenant]
}

// Save-as payload. Either empty or carrying all four sections.
#Draft: {
	propertyDetails?:    #PropertyDetails
	underwritingInputs?: #UnderwritingInputs
	brokers?:            [...#Broker]
	tenants?:            [...#Tenant]
}
`
