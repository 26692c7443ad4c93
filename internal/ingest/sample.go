package ingest

// SampleFilename is the download name of SampleCSV.
const SampleFilename = "sample_invoices.csv"

// SampleCSV is a template upload that ParseCSV accepts unchanged.
const SampleCSV = `account_number,first_name,last_name,email,amount,currency,due_on,description,status
50689,Candie,Tallant,ctallant0@nytimes.com,1,CNY,10/24/2024,,PENDING
88616,Eddi,Oldam,eoldam1@seesaa.net,79,XOF,9/4/2024,Consulting,PENDING
75272,Addy,Knox,aknox2@geocities.jp,63,RUB,9/26/2024,,PAID
69429,Daniele,Keig,dkeig3@vistaprint.com,78,NGN,9/28/2024,Hosting,PENDING
35004,Anastasia,Botterill,abotterill4@bluehost.com,56,RUB,12/15/2024,,CANCELLED
`
